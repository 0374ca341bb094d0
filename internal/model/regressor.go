package model

// Regressor 为已训练的回归模型：输入与特征列顺序一致的一行，输出价格。
type Regressor interface {
	Predict(features []float64) float64
}

// RegressorFunc 允许使用函数作为回归模型，便于测试注入。
type RegressorFunc func(features []float64) float64

// Predict 实现 Regressor。
func (f RegressorFunc) Predict(features []float64) float64 {
	return f(features)
}

// PredictAll 对矩阵逐行预测。
func PredictAll(m Regressor, rows [][]float64) []float64 {
	out := make([]float64, len(rows))
	for i, row := range rows {
		out[i] = m.Predict(row)
	}
	return out
}
