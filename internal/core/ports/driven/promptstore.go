package driven

// Prompt names for the summariser templates. Each service type maps to
// its own template so sermons, bible studies, and youth services get
// appropriately toned summaries.
const (
	PromptSummaryDefault    = "summary_default"
	PromptSummarySunday     = "summary_sunday_service"
	PromptSummaryBibleStudy = "summary_bible_study"
	PromptSummaryMidweek    = "summary_midweek"
	PromptSummaryConference = "summary_conference"
	PromptSummaryGuest      = "summary_guest_speaker"
	PromptSummaryYouth      = "summary_youth_service"
)

// PromptStore loads customisable prompt templates by name.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	Load(name string) (string, error)
}
