package metrics

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/tabautoml/pkg/errors"
)

const probEpsilon = 1e-15

// Accuracy は正解率を計算する
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// ClassificationError は誤分類率（1 - Accuracy）を計算する
func ClassificationError(yTrue, yPred *mat.VecDense) (float64, error) {
	acc, err := Accuracy(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return 1 - acc, nil
}

func requireBinary(op string, y *mat.VecDense) error {
	for i := 0; i < y.Len(); i++ {
		if v := y.AtVec(i); v != 0 && v != 1 {
			return errors.NewValueError(op, fmt.Sprintf("labels must be 0 or 1, got %v", v))
		}
	}
	return nil
}

// AUC はROC曲線下面積をMann-Whitney統計量（同順位は平均順位）で計算する。
// yTrueは0/1、yPredは陽性クラスのスコア。片方のクラスしか無い場合は0.5を返し警告する。
func AUC(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("AUC", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	if err := requireBinary("AUC", yTrue); err != nil {
		return 0, err
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return yPred.AtVec(idx[a]) < yPred.AtVec(idx[b]) })

	var nPos, nNeg, rankSumPos float64
	for start := 0; start < n; {
		end := start + 1
		for end < n && yPred.AtVec(idx[end]) == yPred.AtVec(idx[start]) {
			end++
		}
		// 1始まりの順位の平均
		avgRank := float64(start+end+1) / 2
		for k := start; k < end; k++ {
			if yTrue.AtVec(idx[k]) == 1 {
				nPos++
				rankSumPos += avgRank
			} else {
				nNeg++
			}
		}
		start = end
	}

	if nPos == 0 || nNeg == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("AUC", "only one class present in yTrue", 0.5))
		return 0.5, nil
	}
	return (rankSumPos - nPos*(nPos+1)/2) / (nPos * nNeg), nil
}

// AUCMatrix は行列の最初の列を使ってAUCを計算する
func AUCMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	a, err := ColumnVec("AUCMatrix", yTrue)
	if err != nil {
		return 0, err
	}
	b, err := ColumnVec("AUCMatrix", yPred)
	if err != nil {
		return 0, err
	}
	return AUC(a, b)
}

// AUCScore は確率行列からAUCを計算する。2クラスでは列1を陽性スコアとし、
// 多クラスではOne-vs-RestのAUCをマクロ平均する。
func AUCScore(yTrue *mat.VecDense, proba mat.Matrix) (float64, error) {
	if proba == nil {
		return 0, errors.NewValueError("AUCScore", "probabilities are required")
	}
	rows, k := proba.Dims()
	if yTrue == nil || yTrue.Len() != rows {
		got := 0
		if yTrue != nil {
			got = yTrue.Len()
		}
		return 0, errors.NewDimensionError("AUCScore", rows, got, 0)
	}
	if k == 2 {
		pos := mat.NewVecDense(rows, nil)
		for i := 0; i < rows; i++ {
			pos.SetVec(i, proba.At(i, 1))
		}
		return AUC(yTrue, pos)
	}

	var sum float64
	used := 0
	for c := 0; c < k; c++ {
		bin := mat.NewVecDense(rows, nil)
		score := mat.NewVecDense(rows, nil)
		present := false
		for i := 0; i < rows; i++ {
			if int(yTrue.AtVec(i)) == c {
				bin.SetVec(i, 1)
				present = true
			}
			score.SetVec(i, proba.At(i, c))
		}
		if !present {
			continue
		}
		auc, err := AUC(bin, score)
		if err != nil {
			return 0, err
		}
		sum += auc
		used++
	}
	if used == 0 {
		return 0.5, nil
	}
	return sum / float64(used), nil
}

// ROCCurve は陽性スコアからROC曲線（FPR, TPR）を返す
func ROCCurve(yTrue, score *mat.VecDense) (fpr, tpr []float64, err error) {
	n, err := checkPair("ROCCurve", yTrue, score)
	if err != nil {
		return nil, nil, err
	}
	if err := requireBinary("ROCCurve", yTrue); err != nil {
		return nil, nil, err
	}
	y := make([]float64, n)
	classes := make([]bool, n)
	for i := 0; i < n; i++ {
		y[i] = score.AtVec(i)
		classes[i] = yTrue.AtVec(i) == 1
	}
	stat.SortWeightedLabeled(y, classes, nil)
	tpr, fpr, _ = stat.ROC(nil, y, classes, nil)
	return fpr, tpr, nil
}

// BinaryLogLoss は2値分類の対数損失を計算する。確率は[eps, 1-eps]にクリップされる
func BinaryLogLoss(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("BinaryLogLoss", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	if err := requireBinary("BinaryLogLoss", yTrue); err != nil {
		return 0, err
	}
	var sum float64
	for i := 0; i < n; i++ {
		p := errors.ClipValue(yPred.AtVec(i), probEpsilon, 1-probEpsilon)
		if yTrue.AtVec(i) == 1 {
			sum -= math.Log(p)
		} else {
			sum -= math.Log(1 - p)
		}
	}
	return sum / float64(n), nil
}

// LogLoss は多クラスの対数損失を計算する。probaの列はクラス 0..k-1 に対応する
func LogLoss(yTrue *mat.VecDense, proba mat.Matrix) (float64, error) {
	if yTrue == nil || yTrue.Len() == 0 || proba == nil {
		return 0, errors.NewValueError("LogLoss", "empty input")
	}
	rows, k := proba.Dims()
	if rows != yTrue.Len() {
		return 0, errors.NewDimensionError("LogLoss", yTrue.Len(), rows, 0)
	}
	var sum float64
	for i := 0; i < rows; i++ {
		c := int(yTrue.AtVec(i))
		if c < 0 || c >= k {
			return 0, errors.NewValueError("LogLoss", fmt.Sprintf("label %d outside of %d probability columns", c, k))
		}
		sum -= errors.StabilizeLog(errors.ClipValue(proba.At(i, c), probEpsilon, 1-probEpsilon))
	}
	return sum / float64(rows), nil
}

// ConfusionMatrix は混同行列（行: 正解、列: 予測）とラベル一覧を返す
func ConfusionMatrix(yTrue, yPred *mat.VecDense) (*mat.Dense, []int, error) {
	n, err := checkPair("ConfusionMatrix", yTrue, yPred)
	if err != nil {
		return nil, nil, err
	}
	labels := unionLabels(yTrue, yPred)
	pos := make(map[int]int, len(labels))
	for i, l := range labels {
		pos[l] = i
	}
	cm := mat.NewDense(len(labels), len(labels), nil)
	for i := 0; i < n; i++ {
		r, c := pos[int(yTrue.AtVec(i))], pos[int(yPred.AtVec(i))]
		cm.Set(r, c, cm.At(r, c)+1)
	}
	return cm, labels, nil
}

func unionLabels(vs ...*mat.VecDense) []int {
	seen := map[int]bool{}
	for _, v := range vs {
		for i := 0; i < v.Len(); i++ {
			seen[int(v.AtVec(i))] = true
		}
	}
	labels := make([]int, 0, len(seen))
	for l := range seen {
		labels = append(labels, l)
	}
	sort.Ints(labels)
	return labels
}

type classCounts struct {
	tp, fp, fn, support float64
}

// perClass は各ラベルのTP/FP/FNと、2値（ラベル⊆{0,1}）かどうかを返す
func perClass(op string, yTrue, yPred *mat.VecDense) (map[int]*classCounts, []int, bool, int, error) {
	n, err := checkPair(op, yTrue, yPred)
	if err != nil {
		return nil, nil, false, 0, err
	}
	labels := unionLabels(yTrue, yPred)
	counts := make(map[int]*classCounts, len(labels))
	for _, l := range labels {
		counts[l] = &classCounts{}
	}
	for i := 0; i < n; i++ {
		t, p := int(yTrue.AtVec(i)), int(yPred.AtVec(i))
		counts[t].support++
		if t == p {
			counts[t].tp++
		} else {
			counts[p].fp++
			counts[t].fn++
		}
	}
	binary := true
	for _, l := range labels {
		if l != 0 && l != 1 {
			binary = false
		}
	}
	return counts, labels, binary, n, nil
}

func ratio(metric string, num, den float64) float64 {
	if den == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning(metric, "zero denominator", 0))
		return 0
	}
	return num / den
}

// averaged は2値なら陽性クラス1のスコア、多クラスならサポート重み付き平均を返す
func averaged(op string, yTrue, yPred *mat.VecDense, score func(c *classCounts) float64) (float64, error) {
	counts, labels, binary, n, err := perClass(op, yTrue, yPred)
	if err != nil {
		return 0, err
	}
	if binary {
		c, ok := counts[1]
		if !ok {
			c = &classCounts{}
		}
		return score(c), nil
	}
	var sum float64
	for _, l := range labels {
		c := counts[l]
		if c.support == 0 {
			continue
		}
		sum += score(c) * c.support / float64(n)
	}
	return sum, nil
}

// Precision は適合率を計算する（2値: 陽性クラス1、多クラス: 重み付き平均）
func Precision(yTrue, yPred *mat.VecDense) (float64, error) {
	return averaged("Precision", yTrue, yPred, func(c *classCounts) float64 {
		return ratio("Precision", c.tp, c.tp+c.fp)
	})
}

// Recall は再現率を計算する（2値: 陽性クラス1、多クラス: 重み付き平均）
func Recall(yTrue, yPred *mat.VecDense) (float64, error) {
	return averaged("Recall", yTrue, yPred, func(c *classCounts) float64 {
		return ratio("Recall", c.tp, c.tp+c.fn)
	})
}

// F1 はF1スコアを計算する（2値: 陽性クラス1、多クラス: 重み付き平均）
func F1(yTrue, yPred *mat.VecDense) (float64, error) {
	return averaged("F1", yTrue, yPred, func(c *classCounts) float64 {
		return ratio("F1", 2*c.tp, 2*c.tp+c.fp+c.fn)
	})
}

// CohenKappa はCohenのκ係数を計算する
func CohenKappa(yTrue, yPred *mat.VecDense) (float64, error) {
	cm, _, err := ConfusionMatrix(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	k, _ := cm.Dims()
	total := mat.Sum(cm)
	var po, pe float64
	for i := 0; i < k; i++ {
		po += cm.At(i, i)
		var row, col float64
		for j := 0; j < k; j++ {
			row += cm.At(i, j)
			col += cm.At(j, i)
		}
		pe += row * col
	}
	po /= total
	pe /= total * total
	if pe == 1 {
		return 0, nil
	}
	return (po - pe) / (1 - pe), nil
}

// MCC はMatthews相関係数（多クラス一般化）を計算する
func MCC(yTrue, yPred *mat.VecDense) (float64, error) {
	cm, _, err := ConfusionMatrix(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	k, _ := cm.Dims()
	s := mat.Sum(cm)
	var c, sumPT, sumP2, sumT2 float64
	for i := 0; i < k; i++ {
		c += cm.At(i, i)
		var t, p float64
		for j := 0; j < k; j++ {
			t += cm.At(i, j)
			p += cm.At(j, i)
		}
		sumPT += p * t
		sumP2 += p * p
		sumT2 += t * t
	}
	den := math.Sqrt((s*s - sumP2) * (s*s - sumT2))
	if den == 0 {
		return 0, nil
	}
	return (c*s - sumPT) / den, nil
}
