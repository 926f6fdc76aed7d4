package category

// Built-in category keys.
const (
	InnovationPractice       = "innovation_practice"
	Competition              = "competition"
	EntrepreneurshipProject  = "entrepreneurship_project"
	EntrepreneurshipPractice = "entrepreneurship_practice"
	PaperPatent              = "paper_patent"
)

var levels = []string{"school", "city", "provincial", "national", "international"}

func bound(v float64) *float64 { return &v }

// Builtin returns the schemas shipped with the service.
func Builtin() []Schema {
	return []Schema{
		{
			Key:   InnovationPractice,
			Label: "Innovation practice",
			Fields: []Field{
				{Key: "project_name", Label: "Project name", Type: FieldText, Required: true, MaxLen: 255},
				{Key: "project_level", Label: "Project level", Type: FieldEnum, Required: true, Options: levels},
				{Key: "role", Label: "Role in project", Type: FieldText, MaxLen: 64},
				{Key: "supervisor", Label: "Supervisor", Type: FieldText, MaxLen: 64},
				{Key: "total_hours", Label: "Total hours", Type: FieldNumber, Min: bound(0), Max: bound(2000)},
			},
		},
		{
			Key:   Competition,
			Label: "Competition",
			Fields: []Field{
				{Key: "competition_name", Label: "Competition name", Type: FieldText, Required: true, MaxLen: 255},
				{Key: "competition_level", Label: "Competition level", Type: FieldEnum, Required: true, Options: levels},
				{Key: "award_rank", Label: "Award rank", Type: FieldEnum, Required: true, Options: []string{"special", "first", "second", "third", "honorable", "participation"}},
				{Key: "organizer", Label: "Organizer", Type: FieldText, MaxLen: 255},
				{Key: "award_date", Label: "Award date", Type: FieldDate},
			},
		},
		{
			Key:   EntrepreneurshipProject,
			Label: "Entrepreneurship project",
			Fields: []Field{
				{Key: "project_name", Label: "Project name", Type: FieldText, Required: true, MaxLen: 255},
				{Key: "project_type", Label: "Project type", Type: FieldEnum, Required: true, Options: []string{"training", "practice", "incubation"}},
				{Key: "project_level", Label: "Project level", Type: FieldEnum, Options: levels},
				{Key: "share_percent", Label: "Share percent", Type: FieldNumber, Min: bound(0), Max: bound(100)},
			},
		},
		{
			Key:   EntrepreneurshipPractice,
			Label: "Entrepreneurship practice",
			Fields: []Field{
				{Key: "company_name", Label: "Company name", Type: FieldText, Required: true, MaxLen: 255},
				{Key: "position", Label: "Position", Type: FieldText, MaxLen: 64},
				{Key: "share_percent", Label: "Share percent", Type: FieldNumber, Min: bound(0), Max: bound(100)},
				{Key: "total_hours", Label: "Total hours", Type: FieldNumber, Min: bound(0), Max: bound(2000)},
			},
		},
		{
			Key:   PaperPatent,
			Label: "Paper or patent",
			Fields: []Field{
				{Key: "title", Label: "Title", Type: FieldText, Required: true, MaxLen: 255},
				{Key: "kind", Label: "Kind", Type: FieldEnum, Required: true, Options: []string{"paper", "invention_patent", "utility_patent", "design_patent", "software_copyright"}},
				{Key: "publication", Label: "Journal or patent office", Type: FieldText, MaxLen: 255},
				{Key: "author_rank", Label: "Author rank", Type: FieldNumber, Min: bound(0), Max: bound(50)},
				{Key: "published_on", Label: "Publication date", Type: FieldDate},
			},
		},
	}
}

// DefaultRegistry returns a registry preloaded with the built-in categories.
func DefaultRegistry() *Registry {
	registry := NewRegistry()
	for _, schema := range Builtin() {
		if err := registry.Register(schema); err != nil {
			panic(err)
		}
	}
	return registry
}
