package transport

type ListValuesRequest struct {
	From string `form:"from" validate:"omitempty,datetime=2006-01"`
	To   string `form:"to" validate:"omitempty,datetime=2006-01"`
}

type QuarterRequest struct {
	Year    int `form:"year" validate:"required,min=2003,max=2100"`
	Quarter int `form:"quarter" validate:"required,min=1,max=4"`
}

type ValueResponse struct {
	Month         string  `json:"month"`
	TotalBasket   float64 `json:"totalBasket"`
	PovertyLine   float64 `json:"povertyLine"`
	IndigenceLine float64 `json:"indigenceLine"`
	ImportedAt    string  `json:"importedAt"`
}

type ValueListResponse struct {
	Items []ValueResponse `json:"items"`
	Total int             `json:"total"`
}

// QuarterResponse holds the quarterly mean of the monthly values.
type QuarterResponse struct {
	Period        string  `json:"period"`
	Months        int     `json:"months"`
	TotalBasket   float64 `json:"totalBasket"`
	PovertyLine   float64 `json:"povertyLine"`
	IndigenceLine float64 `json:"indigenceLine"`
}

type ImportResponse struct {
	Imported int `json:"imported"`
}
