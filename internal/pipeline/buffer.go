package pipeline

// TrainingBuffer is a bounded, ordered accumulator of feature vectors.
// Appending to a full buffer evicts the oldest sample, which only happens
// after a failed fit handed its samples back through Restore.
type TrainingBuffer struct {
	capacity int
	samples  [][]float64
}

func NewTrainingBuffer(capacity int) *TrainingBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &TrainingBuffer{capacity: capacity, samples: make([][]float64, 0, capacity)}
}

// Append adds one feature vector
func (b *TrainingBuffer) Append(sample []float64) {
	if len(b.samples) >= b.capacity {
		copy(b.samples, b.samples[1:])
		b.samples = b.samples[:len(b.samples)-1]
	}
	b.samples = append(b.samples, append([]float64(nil), sample...))
}

// IsFull reports whether the buffer reached capacity
func (b *TrainingBuffer) IsFull() bool {
	return len(b.samples) >= b.capacity
}

// DrainAll returns all samples in arrival order and empties the buffer
func (b *TrainingBuffer) DrainAll() [][]float64 {
	out := b.samples
	b.samples = make([][]float64, 0, b.capacity)
	return out
}

// Restore puts drained samples back, keeping the newest capacity of them
func (b *TrainingBuffer) Restore(samples [][]float64) {
	if len(samples) > b.capacity {
		samples = samples[len(samples)-b.capacity:]
	}
	b.samples = append(b.samples[:0], samples...)
}

func (b *TrainingBuffer) Len() int { return len(b.samples) }

func (b *TrainingBuffer) Cap() int { return b.capacity }
