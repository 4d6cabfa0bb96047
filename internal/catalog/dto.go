package catalog

type DocumentTypeResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Price string `json:"price"`
}

type DocumentTypesResponse struct {
	DocumentTypes []DocumentTypeResponse `json:"document_types"`
}
