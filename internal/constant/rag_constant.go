package constant

// Chat roles persisted in conversational state.
const (
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// User roles issued by the directory / token claims.
const (
	RoleGuest   = "guest"
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleScholar = "scholar"
)

// Access tiers. A session is permanently bound to exactly one tier.
const (
	TierPublic   = "public"
	TierAcademic = "academic"
	TierInternal = "internal"
	TierPersonal = "personal"
)

// Default collection names, overridable via config.
const (
	CollectionFAQ      = "rag_faq"
	CollectionStandard = "rag_standard"
	CollectionResearch = "rag_knowledge"
	CollectionInternal = "rag_internal"
	CollectionPersonal = "rag_person_info"
)

// TierPermissions maps each tier to the roles allowed to query it.
var TierPermissions = map[string][]string{
	TierPublic:   {RoleGuest, RoleStudent, RoleTeacher, RoleScholar},
	TierAcademic: {RoleStudent, RoleTeacher, RoleScholar},
	TierInternal: {RoleStudent, RoleTeacher},
	TierPersonal: {RoleStudent, RoleTeacher},
}

// RoleAllowedForTier reports whether role may query tier.
func RoleAllowedForTier(tier, role string) bool {
	for _, r := range TierPermissions[tier] {
		if r == role {
			return true
		}
	}
	return false
}

// KnownTier reports whether tier names a registered pipeline.
func KnownTier(tier string) bool {
	_, ok := TierPermissions[tier]
	return ok
}

// FAQAnswerPrefix marks a short-circuited canonical answer as authoritative.
const FAQAnswerPrefix = "[FAQ] "

// Prompt templates per tier. {context} and {question} are interpolated by
// the orchestrator before synthesis.
const (
	PromptTemplatePublic = `You are the university's public Q&A assistant. Answer the question using only the public reference material below. If the material is insufficient, say so politely.

Reference material:
{context}

Question: {question}
Answer:`

	PromptTemplateAcademic = `You are an academic research assistant. Answer using the provided literature and public material. Be precise and rigorous, and cite the sources you relied on.

Reference literature:
{context}

Question: {question}
Answer:`

	PromptTemplateInternal = `You are an internal administrative assistant with access to internal notices. Answer comprehensively and pay attention to how recent each piece of information is.

Reference material:
{context}

Question: {question}
Answer:`

	PromptTemplatePersonal = `You are a personal records assistant. Below is the user's own profile data. Answer strictly from it.

Personal records:
{context}

Question: {question}
Answer:`
)

// RewriteSystemPrompt instructs the rewrite model to produce a standalone
// search query from the recent conversation.
const RewriteSystemPrompt = `You are a search query optimization expert. Given the conversation history, rewrite the user's latest question into a single standalone search query that carries all necessary context. If no rewriting is needed, output the question unchanged. Output nothing but the query.`
