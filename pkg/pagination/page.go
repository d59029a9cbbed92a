package pagination

// PageParams holds offset pagination inputs for admin listings.
type PageParams struct {
	Page  int
	Limit int
}

// Normalize clamps the page to at least 1 and the limit to the configured bounds.
func (p PageParams) Normalize() PageParams {
	if p.Page < 1 {
		p.Page = 1
	}
	p.Limit = NormalizeLimit(p.Limit)
	return p
}

// Offset returns the row offset for the normalized page.
func (p PageParams) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.Limit
}
