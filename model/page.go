package model

// DefaultPageSize is the size of one data page
const DefaultPageSize = 4096

// Page is one cached data page. Offset is the page's byte address in
// the data file, always a multiple of the page size.
type Page struct {
	Offset int64
	Data   []byte
	Dirty  bool
}

func NewPage(offset int64, pageSize int64) *Page {
	return &Page{
		Offset: offset,
		Data:   make([]byte, pageSize),
	}
}

// Address yields the page's file offset
func (p *Page) Address() int64 {
	return p.Offset
}

func (p *Page) Contents() []byte {
	return p.Data
}
