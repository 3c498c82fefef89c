package types

// Importance levels for a job requirement
const (
	ImportanceRequired   = "Required"
	ImportancePreferred  = "Preferred"
	ImportanceNiceToHave = "Nice to have"
)

// JobRequirement is a single categorized requirement from a job posting
type JobRequirement struct {
	Category    string   `json:"category"` // e.g. "Technical Skills", "Experience", "Education"
	Requirement string   `json:"requirement"`
	Importance  string   `json:"importance"` // Required, Preferred or Nice to have
	Keywords    []string `json:"keywords"`
}

// JobRequirements is the structured form of a job description produced by the parser
type JobRequirements struct {
	Title            string           `json:"title" validate:"required"`
	Company          string           `json:"company,omitempty"`
	Location         string           `json:"location,omitempty"`
	Requirements     []JobRequirement `json:"requirements" validate:"dive"`
	KeySkills        []string         `json:"key_skills"`
	ExperienceLevel  string           `json:"experience_level" validate:"required"` // Entry, Mid, Senior or Executive
	Industry         string           `json:"industry,omitempty"`
	Responsibilities []string         `json:"responsibilities"`
	SalaryRange      string           `json:"salary_range,omitempty"`
	Benefits         []string         `json:"benefits"`
	RawText          string           `json:"raw_text,omitempty"` // Verbatim posting text, retained for indexing
}

// Validate checks that the required fields of the job requirements are present
func (j *JobRequirements) Validate() error {
	return validate.Struct(j)
}

// Normalize replaces nil collections with empty ones
func (j *JobRequirements) Normalize() {
	if j.Requirements == nil {
		j.Requirements = []JobRequirement{}
	}
	for i := range j.Requirements {
		j.Requirements[i].Keywords = nonNil(j.Requirements[i].Keywords)
	}
	j.KeySkills = nonNil(j.KeySkills)
	j.Responsibilities = nonNil(j.Responsibilities)
	j.Benefits = nonNil(j.Benefits)
}
