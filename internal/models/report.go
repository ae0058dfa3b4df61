package models

// LinkFinding is a problem detected on one link of an audited page.
type LinkFinding struct {
	Error   string       `json:"error"`
	HTML    string       `json:"html"`
	URL     LinkURL      `json:"url"`
	Verbose *LinkVerbose `json:"verbose,omitempty"`
}

type LinkURL struct {
	Original   string `json:"original"`
	Resolved   string `json:"resolved"`
	Redirected string `json:"redirected,omitempty"`
}

type LinkVerbose struct {
	StatusCode int    `json:"statusCode"`
	Internal   bool   `json:"internal"`
	TagName    string `json:"tagName"`
	Attribute  string `json:"attribute"`
}

// ValidatorMessage is one message returned by the Nu HTML validator.
type ValidatorMessage struct {
	Type      string `json:"type"`
	SubType   string `json:"subType,omitempty"`
	Message   string `json:"message"`
	Extract   string `json:"extract,omitempty"`
	FirstLine int    `json:"firstLine,omitempty"`
	LastLine  int    `json:"lastLine,omitempty"`
	FirstCol  int    `json:"firstColumn,omitempty"`
	LastCol   int    `json:"lastColumn,omitempty"`
	Filename  string `json:"filename"`
}

// A11yIssue mirrors an issue in pa11y's JSON reporter output.
type A11yIssue struct {
	Code     string `json:"code"`
	Type     string `json:"type"`
	TypeCode int    `json:"typeCode,omitempty"`
	Message  string `json:"message"`
	Context  string `json:"context,omitempty"`
	Selector string `json:"selector,omitempty"`
	Runner   string `json:"runner,omitempty"`
}
