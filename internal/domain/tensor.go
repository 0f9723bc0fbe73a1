package domain

const (
	TensorChannels = 3
	TensorSide     = 224
	TensorLen      = TensorChannels * TensorSide * TensorSide
)

// Tensor — нормализованное изображение в порядке CHW, длина TensorLen.
type Tensor []float32
