package embedding

import "fmt"

// meanPool averages token states over the attention mask. hidden is a flattened
// (batch, seq, dim) tensor and mask a flattened (batch, seq) tensor. Rows with an
// all-zero mask come back as zero vectors.
func meanPool(hidden []float32, mask []int64, batch, seq, dim int) ([][]float32, error) {
	if len(hidden) != batch*seq*dim {
		return nil, fmt.Errorf("hidden state has %d values, want %d (%dx%dx%d)", len(hidden), batch*seq*dim, batch, seq, dim)
	}
	if len(mask) != batch*seq {
		return nil, fmt.Errorf("attention mask has %d values, want %d", len(mask), batch*seq)
	}
	out := make([][]float32, batch)
	for b := 0; b < batch; b++ {
		row := make([]float32, dim)
		var n float32
		for t := 0; t < seq; t++ {
			if mask[b*seq+t] == 0 {
				continue
			}
			n++
			tok := hidden[(b*seq+t)*dim : (b*seq+t+1)*dim]
			for d, v := range tok {
				row[d] += v
			}
		}
		if n > 0 {
			for d := range row {
				row[d] /= n
			}
		}
		out[b] = row
	}
	return out, nil
}
