package errors

import (
	"math"
)

// CheckNumericalStability は値にNaNまたはInfが含まれていればエラーを返します。
func CheckNumericalStability(operation string, values []float64, iteration int) error {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return NewNumericalInstabilityError(operation, values, iteration)
		}
	}
	return nil
}

// CheckScalar は単一のスカラー値を検査します。
func CheckScalar(operation string, value float64, iteration int) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return NewNumericalInstabilityError(operation, []float64{value}, iteration)
	}
	return nil
}

// SafeDivide は分母がほぼゼロなら0を返す除算です。
func SafeDivide(numerator, denominator float64) float64 {
	if math.Abs(denominator) < 1e-10 {
		return 0
	}
	return numerator / denominator
}

// ClipValue は値を[min, max]に収めます。
func ClipValue(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// StabilizeLog は log(max(value, 1e-15)) を計算します。
func StabilizeLog(value float64) float64 {
	const epsilon = 1e-15
	if value < epsilon {
		return math.Log(epsilon)
	}
	return math.Log(value)
}

// StabilizeExp はオーバーフローしないよう入力をクリップしてexpを計算します。
func StabilizeExp(value float64) float64 {
	const maxExp = 700.0
	if value > maxExp {
		return math.Exp(maxExp)
	}
	if value < -maxExp {
		return 0
	}
	return math.Exp(value)
}

// Sigmoid は数値的に安定なロジスティック関数です。
func Sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + StabilizeExp(-z))
	}
	ez := StabilizeExp(z)
	return ez / (1 + ez)
}

// Softmax はlog-sum-expで安定化したsoftmaxをdstに書き込みます。
func Softmax(dst, scores []float64) {
	lse := LogSumExp(scores)
	for i, s := range scores {
		dst[i] = math.Exp(s - lse)
	}
}

// LogSumExp は log(sum(exp(values))) を数値的に安定な方法で計算します。
func LogSumExp(values []float64) float64 {
	if len(values) == 0 {
		return math.Inf(-1)
	}
	maxVal := values[0]
	for _, v := range values[1:] {
		if v > maxVal {
			maxVal = v
		}
	}
	if math.IsInf(maxVal, -1) {
		return math.Inf(-1)
	}
	sum := 0.0
	for _, v := range values {
		sum += math.Exp(v - maxVal)
	}
	return maxVal + math.Log(sum)
}
