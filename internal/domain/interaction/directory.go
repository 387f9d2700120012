package interaction

// Directory is the set of known CRM records that free text is matched
// against during ingestion.
type Directory struct {
	Companies []EntityRef `json:"companies"`
	Contacts  []EntityRef `json:"contacts"`
	Deals     []EntityRef `json:"deals"`
}

// Empty reports whether the directory holds no records at all.
func (d *Directory) Empty() bool {
	return d == nil || len(d.Companies)+len(d.Contacts)+len(d.Deals) == 0
}
