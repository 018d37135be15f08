package analytics

import "gestionale/internal/core"

// Inputs bundles the raw entity collections every builder consumes.
// Collections are treated as read-only; builders never mutate them.
type Inputs struct {
	Clients  []core.Client
	Projects []core.Project
	Services []core.Service
	Payments []core.Payment
	Quotes   []core.Quote
	Expenses []core.Expense
}

// lookups holds the string-keyed join tables built once per builder
// invocation: O(n) to build, O(1) per lookup afterwards.
type lookups struct {
	projects map[string]core.Project
	clients  map[string]core.Client
}

func buildLookups(in Inputs) lookups {
	lk := lookups{
		projects: make(map[string]core.Project, len(in.Projects)),
		clients:  make(map[string]core.Client, len(in.Clients)),
	}
	for _, p := range in.Projects {
		lk.projects[p.ID] = p
	}
	for _, c := range in.Clients {
		lk.clients[c.ID] = c
	}
	return lk
}

// categoryOf resolves a project ID to its category; dangling references
// classify as unknown rather than being dropped.
func (lk lookups) categoryOf(projectID string) core.ProjectCategory {
	if p, ok := lk.projects[projectID]; ok {
		if p.Category != "" {
			return p.Category
		}
	}
	return core.CategoryUnknown
}

// clientOf walks the Project -> Client join.
func (lk lookups) clientOf(projectID string) (core.Client, bool) {
	p, ok := lk.projects[projectID]
	if !ok {
		return core.Client{}, false
	}
	c, ok := lk.clients[p.ClientID]
	return c, ok
}

// clientByID resolves a direct client reference.
func (lk lookups) clientByID(clientID string) (core.Client, bool) {
	c, ok := lk.clients[clientID]
	return c, ok
}

// projectName resolves a project ID to its display name, empty when the
// reference dangles.
func (lk lookups) projectName(projectID string) string {
	if p, ok := lk.projects[projectID]; ok {
		return p.Name
	}
	return ""
}

// quoteInYear decides whether a quote belongs to the target year. Quotes
// carry an optional sent date; undated quotes are treated as live
// pipeline and only surface when the current year is selected.
func quoteInYear(q core.Quote, year int, isCurrentYear bool) bool {
	if !q.SentAt.IsZero() {
		return q.SentAt.Year() == year
	}
	return isCurrentYear
}

// paymentYear is the year a payment is attributed to: the due date when
// present, the payment date otherwise.
func paymentYear(p core.Payment) int {
	if !p.DueDate.IsZero() {
		return p.DueDate.Year()
	}
	if !p.Date.IsZero() {
		return p.Date.Year()
	}
	return 0
}
