package transport

// =============================================================================
// Requests
// =============================================================================

// FormatRequest selects the response format of a report.
type FormatRequest struct {
	Format string `form:"format" validate:"omitempty,oneof=json csv xlsx"`
}

// PeriodRequest selects one survey wave. An empty period means the latest.
type PeriodRequest struct {
	Period string `form:"period" validate:"omitempty,period"`
	Format string `form:"format" validate:"omitempty,oneof=json csv xlsx"`
}

// YearRequest selects one survey year. Zero means the latest year.
type YearRequest struct {
	Year   int    `form:"year" validate:"omitempty,min=2003,max=2100"`
	Format string `form:"format" validate:"omitempty,oneof=json csv xlsx"`
}

// ClusterRequest selects one geographic cluster from the path.
type ClusterRequest struct {
	Cluster string `form:"-" validate:"required,cluster"`
	Format  string `form:"format" validate:"omitempty,oneof=json csv xlsx"`
}

// EducationLevelRequest selects one NIVEL_ED code.
type EducationLevelRequest struct {
	Level  string `form:"level" validate:"required,numeric,max=2"`
	Format string `form:"format" validate:"omitempty,oneof=json csv xlsx"`
}

// ComparisonRequest compares two different clusters.
type ComparisonRequest struct {
	A      string `form:"a" validate:"required,cluster"`
	B      string `form:"b" validate:"required,cluster,nefield=A"`
	Format string `form:"format" validate:"omitempty,oneof=json csv xlsx"`
}

// AgeGroupsRequest selects a year and age groups such as "20-29" or "+60".
type AgeGroupsRequest struct {
	Year   int      `form:"year" validate:"omitempty,min=2003,max=2100"`
	Groups []string `form:"group" validate:"omitempty,max=10,dive,agegroup"`
	Format string   `form:"format" validate:"omitempty,oneof=json csv xlsx"`
}

// PovertyRequest classifies households of a period. When both lines are
// omitted they are taken from the basket values of the period's quarter.
type PovertyRequest struct {
	Period        string  `form:"period" validate:"omitempty,period"`
	PovertyLine   float64 `form:"povertyLine" validate:"omitempty,gt=0,required_with=IndigenceLine"`
	IndigenceLine float64 `form:"indigenceLine" validate:"omitempty,gt=0,required_with=PovertyLine"`
	Format        string  `form:"format" validate:"omitempty,oneof=json csv xlsx"`
}

// =============================================================================
// Responses
// =============================================================================

// Report wraps a query result with the dataset that produced it.
type Report[T any] struct {
	Report      string `json:"report"`
	Fingerprint string `json:"fingerprint"`
	Data        T      `json:"data"`
}

// PeriodsResponse lists the loaded survey waves.
type PeriodsResponse struct {
	Fingerprint string   `json:"fingerprint"`
	Periods     []string `json:"periods"`
	Latest      *string  `json:"latest,omitempty"`
}

// ClusterResponse is one geographic cluster of the codebook.
type ClusterResponse struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// ClusterListResponse lists clusters ordered by name.
type ClusterListResponse struct {
	Items []ClusterResponse `json:"items"`
	Total int               `json:"total"`
}
