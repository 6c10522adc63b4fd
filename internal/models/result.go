package models

import "time"

// CompanyDetails holds the optional registry attributes parsed from a bot reply.
// A nil field means the reply did not carry it; it is never replaced by "" or 0.
type CompanyDetails struct {
	OGRN              *string `json:"ogrn"`
	CompanyName       *string `json:"company_name"`
	OKVED             *string `json:"okved"`
	RegDate           *string `json:"reg_date"`
	CompanyStatus     *string `json:"company_status"`
	DirectorName      *string `json:"director_name"`
	DirectorINN       *string `json:"director_inn"`
	EmployeesCount    *int64  `json:"employees_count"`
	Revenue2024       *int64  `json:"revenue_2024"`
	Income2024        *int64  `json:"income_2024"`
	Expenses2024      *int64  `json:"expenses_2024"`
	AuthorizedCapital *int64  `json:"authorized_capital"`
	Address           *string `json:"address"`
	// Founders is nil when the founders heading is missing and empty when the heading has no lines.
	Founders []Founder `json:"founders"`
}

// MissingFields returns the names of the attributes that are absent, in column order.
func (d *CompanyDetails) MissingFields() []string {
	var missing []string
	check := func(name string, absent bool) {
		if absent {
			missing = append(missing, name)
		}
	}
	check("ogrn", d.OGRN == nil)
	check("company_name", d.CompanyName == nil)
	check("okved", d.OKVED == nil)
	check("reg_date", d.RegDate == nil)
	check("company_status", d.CompanyStatus == nil)
	check("director_name", d.DirectorName == nil)
	check("director_inn", d.DirectorINN == nil)
	check("employees_count", d.EmployeesCount == nil)
	check("revenue_2024", d.Revenue2024 == nil)
	check("income_2024", d.Income2024 == nil)
	check("expenses_2024", d.Expenses2024 == nil)
	check("authorized_capital", d.AuthorizedCapital == nil)
	check("address", d.Address == nil)
	check("founders", d.Founders == nil)
	return missing
}

// Founder is one ownership entry from the founders block. Lines that do not follow
// the "Name, ИНН digits, доля N%" shape keep only RawLine.
type Founder struct {
	Name         *string `json:"name,omitempty"`
	INN          *string `json:"inn,omitempty"`
	SharePercent *int    `json:"share_percent,omitempty"`
	RawLine      string  `json:"raw_line"`
}

// Structured reports whether the line was parsed into name and INN.
func (f Founder) Structured() bool {
	return f.Name != nil && f.INN != nil
}

// Fields is the extractor output for one reply. INN is nil when the reply is not a result message.
type Fields struct {
	INN *string `json:"inn"`
	CompanyDetails
	RawText string `json:"raw_text"`
}

// Record is a validated set of fields ready for upsert.
type Record struct {
	INN string `json:"inn" validate:"required,inn"`
	CompanyDetails
	RawText string `json:"raw_text" validate:"required"`
}

// Result is the stored record for one INN.
type Result struct {
	ID int64 `json:"id"`
	Record
	SourceQueryID int64     `json:"source_query_id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ExportRow is a result joined with the query that produced it.
type ExportRow struct {
	Result
	SourceQueryText      string    `json:"source_query_text"`
	SourceQueryCreatedAt time.Time `json:"source_query_created_at"`
}

// Ptr returns a pointer to v. Handy for optional fields.
func Ptr[T any](v T) *T {
	return &v
}
