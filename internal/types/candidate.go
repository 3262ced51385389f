// Package types provides type definitions for structured data used throughout the talent pipeline.
//
//nolint:revive // types is a standard Go package name pattern
package types

// Candidate is the canonical, post-structuring profile of one person plus the
// outputs derived for them by the evaluation stages.
type Candidate struct {
	// Identity
	PublicIdentifier string  `json:"publicIdentifier"`
	FirstName        string  `json:"firstName"`
	LastName         string  `json:"lastName"`
	FullName         string  `json:"fullName,omitempty"`
	Headline         string  `json:"headline,omitempty"`
	Email            *string `json:"email,omitempty"`
	LinkedInURL      string  `json:"linkedinUrl,omitempty"`
	GitHubURL        string  `json:"githubUrl,omitempty"`
	Location         string  `json:"location,omitempty"`

	// Professional history
	CurrentRole     *Position        `json:"currentRole,omitempty"`
	Experience      []Position       `json:"experience,omitempty"`
	Education       []Education      `json:"education,omitempty"`
	Skills          []string         `json:"skills,omitempty"`
	Certifications  []Certification  `json:"certifications,omitempty"`
	Languages       []Language       `json:"languages,omitempty"`
	Projects        []Project        `json:"projects,omitempty"`
	Recommendations []Recommendation `json:"recommendations,omitempty"`

	Fingerprint string `json:"fingerprint,omitempty"`

	// Derived outputs, populated progressively through the pipeline
	Scoring         *Scoring         `json:"scoring,omitempty"`
	BackgroundCheck *BackgroundCheck `json:"backgroundCheck,omitempty"`
	Prescreening    *Prescreening    `json:"prescreening,omitempty"`
	Outreach        *Outreach        `json:"outreach,omitempty"`

	// Flags records quality signals such as fallback blocks attached during merge.
	Flags []string `json:"flags,omitempty"`
}

// Position is one role held at one company.
type Position struct {
	Title       string `json:"title"`
	Company     string `json:"company,omitempty"`
	Location    string `json:"location,omitempty"`
	StartDate   string `json:"startDate,omitempty"`
	EndDate     string `json:"endDate,omitempty"`
	Description string `json:"description,omitempty"`
}

// Education is one degree or program.
type Education struct {
	School    string `json:"school"`
	Degree    string `json:"degree,omitempty"`
	Field     string `json:"field,omitempty"`
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
}

// Certification is a named credential.
type Certification struct {
	Name      string `json:"name"`
	Authority string `json:"authority,omitempty"`
	Date      string `json:"date,omitempty"`
}

// Language is a spoken language with an optional proficiency.
type Language struct {
	Name        string `json:"name"`
	Proficiency string `json:"proficiency,omitempty"`
}

// Project is a listed side or work project.
type Project struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
}

// Recommendation is a written endorsement from another person.
type Recommendation struct {
	Author string `json:"author,omitempty"`
	Text   string `json:"text"`
}

// Scoring is the suitability judgement from the evaluation stage.
type Scoring struct {
	Score     float64 `json:"score"`
	Rationale string  `json:"rationale"`
}

// BackgroundCheck is the output of the verification stage.
type BackgroundCheck struct {
	IsMatch bool     `json:"isMatch"`
	Flagged []string `json:"flagged"`
	Summary string   `json:"summary"`
}

// PrescreenQuestionCount is the exact number of prescreening questions per candidate.
const PrescreenQuestionCount = 5

// Prescreening holds exactly PrescreenQuestionCount questions.
type Prescreening struct {
	Questions []string `json:"questions"`
}

// Outreach is a personalized first-contact message.
type Outreach struct {
	Message string `json:"message"`
}

// DisplayName returns the best available human-readable name.
func (c *Candidate) DisplayName() string {
	if c.FullName != "" {
		return c.FullName
	}
	switch {
	case c.FirstName != "" && c.LastName != "":
		return c.FirstName + " " + c.LastName
	case c.FirstName != "":
		return c.FirstName
	case c.LastName != "":
		return c.LastName
	}
	return c.PublicIdentifier
}

// EmailValue returns the contact email or "" when none is known.
func (c *Candidate) EmailValue() string {
	if c.Email == nil {
		return ""
	}
	return *c.Email
}

// HasMinimalIdentity reports whether the required identity fields are present.
func (c *Candidate) HasMinimalIdentity() bool {
	return c.PublicIdentifier != "" && c.FirstName != "" && c.LastName != ""
}

// AddFlag appends a flag unless it is already present.
func (c *Candidate) AddFlag(flag string) {
	for _, f := range c.Flags {
		if f == flag {
			return
		}
	}
	c.Flags = append(c.Flags, flag)
}

// WithoutDerived returns a copy of c with stage outputs and flags cleared. The
// fingerprint is kept.
func (c Candidate) WithoutDerived() Candidate {
	c.Scoring = nil
	c.BackgroundCheck = nil
	c.Prescreening = nil
	c.Outreach = nil
	c.Flags = nil
	return c
}
