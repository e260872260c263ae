package dtos

type EntityResponse struct {
	Name    string   `json:"name"`
	Doctype string   `json:"doctype"`
	Slug    string   `json:"slug"`
	Fields  []string `json:"fields"`
}
