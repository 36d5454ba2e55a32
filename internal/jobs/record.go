package jobs

// Record is the full job state as stored and as served to clients. Every
// mutation replaces the whole serialized record under a single key, so
// readers never observe a partial write.
type Record struct {
	JobID           string `json:"job_id"`
	Filename        string `json:"filename"`
	Status          Status `json:"status"`
	Message         string `json:"message"`
	PercentComplete int    `json:"percent_complete"`
	CurrentPage     int    `json:"current_page"`
	TotalPages      int    `json:"total_pages"`
}

// extractionBandCeil is the percent reached when the extraction phase ends.
// Extraction counts pages; every later phase counts chunks. The two unit
// scales are stitched into one continuous bar: extraction fills [0,55] and
// the downstream phases fill [55,99]. 100 is reserved for completion.
const extractionBandCeil = 55

// extractionPercent maps page progress onto [0,55]. Once at least one page
// is done the bar shows at least 1%.
func extractionPercent(current, total int) int {
	if current <= 0 || total <= 0 {
		return 0
	}
	p := int(float64(current) / float64(total) * extractionBandCeil)
	if p < 1 {
		p = 1
	}
	if p > extractionBandCeil {
		p = extractionBandCeil
	}
	return p
}

// downstreamPercent maps chunk progress onto [55,99].
func downstreamPercent(current, total int) int {
	if total <= 0 {
		return extractionBandCeil
	}
	p := extractionBandCeil + int(float64(current)/float64(total)*(99-extractionBandCeil))
	if p < extractionBandCeil {
		p = extractionBandCeil
	}
	if p > 99 {
		p = 99
	}
	return p
}

func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
