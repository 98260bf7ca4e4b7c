package chunker

// Stats summarises a set of chunks for operator output.
type Stats struct {
	TotalChunks    int            `json:"total_chunks"`
	TotalDocuments int            `json:"total_documents"`
	AvgLength      float64        `json:"avg_chunk_length"`
	MinLength      int            `json:"min_chunk_length"`
	MaxLength      int            `json:"max_chunk_length"`
	ByCategory     map[string]int `json:"chunks_by_category"`
}

// Summarize computes Stats over chunks. Documents are counted by title.
func Summarize(chunks []Chunk) Stats {
	s := Stats{ByCategory: make(map[string]int)}
	if len(chunks) == 0 {
		return s
	}

	titles := make(map[string]struct{})
	total := 0
	s.MinLength = runeLen(chunks[0].Text)
	for _, ch := range chunks {
		n := runeLen(ch.Text)
		total += n
		if n < s.MinLength {
			s.MinLength = n
		}
		if n > s.MaxLength {
			s.MaxLength = n
		}
		titles[ch.Title] = struct{}{}
		s.ByCategory[ch.Category]++
	}
	s.TotalChunks = len(chunks)
	s.TotalDocuments = len(titles)
	s.AvgLength = float64(total) / float64(len(chunks))
	return s
}
