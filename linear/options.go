package linear

// Option configures LinearRegression and Ridge
type Option func(*LinearRegression)

// WithFitIntercept sets whether to calculate the intercept
func WithFitIntercept(fit bool) Option {
	return func(lr *LinearRegression) {
		lr.FitIntercept = fit
	}
}

// WithTol sets the relative singular value cutoff used by the SVD fallback
func WithTol(tol float64) Option {
	return func(lr *LinearRegression) {
		lr.Tol = tol
	}
}
