package services

import (
	"testing"
	"time"

	"github.com/xcyber/portal/internal/models"
)

func resp(id, user, provider, section, question string, submitted bool, at time.Time) *models.Response {
	return &models.Response{
		ID: id, UserID: user, ProviderID: provider, SectionID: section, QuestionID: question,
		Answer: models.Single("x"), IsSubmitted: submitted, CreatedAt: at, UpdatedAt: at,
	}
}

func TestProviderStatsZeroResponses(t *testing.T) {
	svc := NewAnalyticsService(fixture())
	stats, err := svc.ProviderStats()
	if err != nil {
		t.Fatalf("ProviderStats returned error: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("stats got %d providers, want 2", len(stats))
	}
	for _, st := range stats {
		if st.TotalUsers != 0 || st.CompletionPercentage != 0 {
			t.Fatalf("empty provider stats got %+v", st)
		}
	}
}

func TestProviderStatsCounts(t *testing.T) {
	store := fixture()
	t0 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	store.users = append(store.users, &models.User{ID: "U3", Email: "cy@example.com", Name: "Cy", Role: models.RoleUser})
	store.responses = []*models.Response{
		resp("R1", "U1", "P1", "S1", "Q1", true, t0),
		resp("R2", "U1", "P1", "S2", "Q3", true, t0),
		resp("R3", "U2", "P1", "S1", "Q1", false, t0),
		resp("R4", "U3", "P1", "S1", "Q1", true, t0),
		resp("R5", "U3", "P1", "S2", "Q3", false, t0.Add(time.Hour)),
	}
	svc := NewAnalyticsService(store)
	stats, err := svc.ProviderStats()
	if err != nil {
		t.Fatalf("ProviderStats returned error: %v", err)
	}
	p1 := stats[0]
	if p1.ProviderID != "P1" {
		t.Fatalf("first provider got %s, want P1", p1.ProviderID)
	}
	// U3 has one submitted and one draft response, so it counts in both.
	if p1.TotalUsers != 3 || p1.SubmittedCount != 2 || p1.DraftCount != 2 {
		t.Fatalf("P1 stats got %+v", p1)
	}
	if p1.CompletionPercentage != 67 {
		t.Fatalf("completion got %d, want 67", p1.CompletionPercentage)
	}

	ov, err := svc.AgentOverview("P1")
	if err != nil {
		t.Fatalf("AgentOverview returned error: %v", err)
	}
	if ov.TotalClients != 3 || ov.SubmittedUsers != 2 || ov.DraftUsers != 2 {
		t.Fatalf("agent overview got %+v", ov)
	}
	if ov.TotalSections != 2 || ov.TotalQuestions != 3 {
		t.Fatalf("schema counts got %d/%d, want 2/3", ov.TotalSections, ov.TotalQuestions)
	}
	if len(ov.RecentResponses) != 5 || ov.RecentResponses[0].ID != "R5" {
		t.Fatalf("recent responses got %+v", ov.RecentResponses)
	}
}

func TestProviderStatsMixedUserCountsTwice(t *testing.T) {
	store := fixture()
	t0 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	store.responses = []*models.Response{
		resp("R1", "U1", "P1", "S1", "Q1", true, t0),
		resp("R2", "U1", "P1", "S2", "Q3", false, t0),
	}
	stats, err := NewAnalyticsService(store).ProviderStats()
	if err != nil {
		t.Fatalf("ProviderStats returned error: %v", err)
	}
	st := stats[0]
	if st.TotalUsers != 1 || st.SubmittedCount != 1 || st.DraftCount != 1 || st.CompletionPercentage != 100 {
		t.Fatalf("mixed user stats got %+v, want total=1 submitted=1 draft=1 pct=100", st)
	}
}

func TestAdminOverview(t *testing.T) {
	store := fixture()
	t0 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	store.responses = []*models.Response{
		resp("R1", "U1", "P1", "S1", "Q1", true, t0),
		resp("R2", "U2", "P1", "S1", "Q1", false, t0),
	}
	ov, err := NewAnalyticsService(store).AdminOverview()
	if err != nil {
		t.Fatalf("AdminOverview returned error: %v", err)
	}
	if ov.TotalUsers != 2 || ov.TotalAgents != 1 {
		t.Fatalf("user counts got %d/%d, want 2/1", ov.TotalUsers, ov.TotalAgents)
	}
	if ov.TotalResponses != 2 || ov.SubmittedResponses != 1 || ov.DraftResponses != 1 {
		t.Fatalf("response counts got %+v", ov)
	}
	if ov.Providers[0].CompletionPercentage != 50 {
		t.Fatalf("completion got %d, want 50", ov.Providers[0].CompletionPercentage)
	}
}

func TestAgentClientsSearch(t *testing.T) {
	store := fixture()
	t0 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	store.responses = []*models.Response{
		resp("R1", "U1", "P1", "S1", "Q1", true, t0),
		resp("R2", "U2", "P1", "S1", "Q1", false, t0.Add(time.Hour)),
		resp("R3", "U2", "P2", "S9", "Q9", false, t0),
	}
	svc := NewAnalyticsService(store)

	all, err := svc.AgentClients("P1", "")
	if err != nil {
		t.Fatalf("AgentClients returned error: %v", err)
	}
	if len(all) != 2 || all[0].User.ID != "U2" {
		t.Fatalf("clients got %+v, want U2 first", all)
	}
	if !all[1].HasSubmitted || all[1].HasDraft {
		t.Fatalf("U1 flags got %+v", all[1])
	}
	hits, _ := svc.AgentClients("P1", "ANN")
	if len(hits) != 1 || hits[0].User.ID != "U1" {
		t.Fatalf("search got %+v, want U1", hits)
	}
	byEmail, _ := svc.AgentClients("P1", "bob@")
	if len(byEmail) != 1 || byEmail[0].User.ID != "U2" {
		t.Fatalf("email search got %+v, want U2", byEmail)
	}
}

func TestUserDashboard(t *testing.T) {
	store := fixture()
	store.responses = []*models.Response{resp("R1", "U1", "P1", "S1", "Q1", false, time.Now())}
	entries, err := NewAnalyticsService(store).UserDashboard("U1")
	if err != nil {
		t.Fatalf("UserDashboard returned error: %v", err)
	}
	if len(entries) != 1 || entries[0].Status != models.StatusDraft {
		t.Fatalf("dashboard got %+v", entries)
	}
	other, _ := NewAnalyticsService(store).UserDashboard("U2")
	if other[0].Status != models.StatusNotStarted {
		t.Fatalf("U2 status got %s, want NOT_STARTED", other[0].Status)
	}
}
