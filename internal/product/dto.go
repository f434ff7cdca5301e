package product

type KitResponse struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Price    string `json:"price"`
	Currency string `json:"currency"`
	Premium  bool   `json:"premium"`
}

type KitsResponse struct {
	Kits []KitResponse `json:"kits"`
}
