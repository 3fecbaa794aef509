package navigation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type mockStepRepo struct {
	records     map[uuid.UUID]*Step
	failCreate  bool
	failUpdates map[uuid.UUID]bool
}

func newMockStepRepo() *mockStepRepo {
	return &mockStepRepo{records: map[uuid.UUID]*Step{}, failUpdates: map[uuid.UUID]bool{}}
}

func (m *mockStepRepo) Create(_ context.Context, s *Step) error {
	if m.failCreate {
		return errors.New("create failed")
	}
	s.ID = uuid.New()
	cp := *s
	m.records[s.ID] = &cp
	return nil
}

func (m *mockStepRepo) CreateBatch(ctx context.Context, steps []*Step) error {
	for _, s := range steps {
		if err := m.Create(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockStepRepo) GetByID(_ context.Context, id uuid.UUID) (*Step, error) {
	s, ok := m.records[id]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := *s
	return &cp, nil
}

func (m *mockStepRepo) Update(_ context.Context, s *Step) error {
	if m.failUpdates[s.ID] {
		return errors.New("update failed")
	}
	if _, ok := m.records[s.ID]; !ok {
		return errors.New("not found")
	}
	cp := *s
	m.records[s.ID] = &cp
	return nil
}

func (m *mockStepRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.records, id)
	return nil
}

func (m *mockStepRepo) DeleteByPatient(_ context.Context, patientID uuid.UUID) error {
	for id, s := range m.records {
		if s.PatientID == patientID {
			delete(m.records, id)
		}
	}
	return nil
}

func (m *mockStepRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*Step, error) {
	var out []*Step
	for _, s := range m.records {
		if s.PatientID == patientID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockStepRepo) ListByPatientAndStage(_ context.Context, patientID uuid.UUID, stage string) ([]*Step, error) {
	var out []*Step
	for _, s := range m.records {
		if s.PatientID == patientID && s.JourneyStage == stage {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockStepRepo) HasSteps(_ context.Context, patientID uuid.UUID) (bool, error) {
	for _, s := range m.records {
		if s.PatientID == patientID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockStepRepo) ListOverdueCandidates(_ context.Context, now time.Time) ([]*Step, error) {
	var out []*Step
	for _, s := range m.records {
		if s.IsOpen() && s.DueDate != nil && s.DueDate.Before(now) && s.Status != StatusOverdue {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockStepRepo) ListOverdueCandidatesForPatient(ctx context.Context, patientID uuid.UUID, now time.Time) ([]*Step, error) {
	all, _ := m.ListOverdueCandidates(ctx, now)
	var out []*Step
	for _, s := range all {
		if s.PatientID == patientID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockStepRepo) LockPatient(_ context.Context, _ uuid.UUID) error   { return nil }
func (m *mockStepRepo) UnlockPatient(_ context.Context, _ uuid.UUID) error { return nil }

type mockPatientSource struct {
	patients map[uuid.UUID]*PatientInfo
	// extraListed shows up in ListNavigable but not Find, simulating a
	// patient deleted mid-run.
	extraListed []*PatientInfo
}

func (m *mockPatientSource) Find(_ context.Context, id uuid.UUID) (*PatientInfo, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return p, nil
}

func (m *mockPatientSource) ListNavigable(_ context.Context) ([]*PatientInfo, error) {
	var out []*PatientInfo
	for _, p := range m.patients {
		out = append(out, p)
	}
	out = append(out, m.extraListed...)
	return out, nil
}

type mockAlerter struct {
	inputs []DelayAlertInput
	// open tracks step IDs that already have an open alert.
	open map[uuid.UUID]bool
}

func newMockAlerter() *mockAlerter {
	return &mockAlerter{open: map[uuid.UUID]bool{}}
}

func (m *mockAlerter) CreateDelayAlert(_ context.Context, in DelayAlertInput) (bool, error) {
	if m.open[in.StepID] {
		return false, nil
	}
	m.open[in.StepID] = true
	m.inputs = append(m.inputs, in)
	return true, nil
}

func newTestService(repo *mockStepRepo, patients *mockPatientSource, alerts *mockAlerter) *Service {
	return NewService(repo, patients, alerts, zerolog.Nop(), 14)
}

func strptr(s string) *string { return &s }

func TestInitializeStepsCreatesPathway(t *testing.T) {
	repo := newMockStepRepo()
	patientID := uuid.New()
	patients := &mockPatientSource{patients: map[uuid.UUID]*PatientInfo{
		patientID: {ID: patientID, CancerType: strptr("colorectal"), Status: "ACTIVE"},
	}}
	svc := newTestService(repo, patients, newMockAlerter())

	steps, err := svc.InitializeSteps(context.Background(), patientID)
	if err != nil {
		t.Fatalf("InitializeSteps: %v", err)
	}
	want := len(TemplatesFor("colorectal", false))
	if len(steps) != want {
		t.Fatalf("expected %d steps, got %d", want, len(steps))
	}
	for _, s := range steps {
		if s.Status != StatusPending && s.Status != StatusOverdue {
			t.Errorf("step %s has unexpected status %s", s.StepKey, s.Status)
		}
		if s.DueDate == nil {
			t.Errorf("step %s has no due date", s.StepKey)
		}
	}
}

func TestInitializeStepsReplacesExisting(t *testing.T) {
	repo := newMockStepRepo()
	patientID := uuid.New()
	patients := &mockPatientSource{patients: map[uuid.UUID]*PatientInfo{
		patientID: {ID: patientID, CancerType: strptr("breast"), Status: "ACTIVE"},
	}}
	svc := newTestService(repo, patients, newMockAlerter())

	stale := &Step{PatientID: patientID, StepKey: "old_step", Name: "Old", JourneyStage: StageScreening, Status: StatusPending}
	if err := repo.Create(context.Background(), stale); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.InitializeSteps(context.Background(), patientID); err != nil {
		t.Fatalf("InitializeSteps: %v", err)
	}
	for _, s := range repo.records {
		if s.StepKey == "old_step" {
			t.Fatal("stale step survived re-initialization")
		}
	}
}

func TestInitializeStepsPalliativePathway(t *testing.T) {
	repo := newMockStepRepo()
	patientID := uuid.New()
	patients := &mockPatientSource{patients: map[uuid.UUID]*PatientInfo{
		patientID: {ID: patientID, CancerType: strptr("lung"), IsPalliativeCare: true, Status: "ACTIVE"},
	}}
	svc := newTestService(repo, patients, newMockAlerter())

	steps, err := svc.InitializeSteps(context.Background(), patientID)
	if err != nil {
		t.Fatalf("InitializeSteps: %v", err)
	}
	for _, s := range steps {
		if s.JourneyStage != StageFollowUp {
			t.Errorf("palliative step %s in stage %s, want FOLLOW_UP", s.StepKey, s.JourneyStage)
		}
	}
}

func TestInitializeStepsUnknownPatient(t *testing.T) {
	svc := newTestService(newMockStepRepo(), &mockPatientSource{patients: map[uuid.UUID]*PatientInfo{}}, newMockAlerter())
	if _, err := svc.InitializeSteps(context.Background(), uuid.New()); !errors.Is(err, ErrPatientNotFound) {
		t.Fatalf("expected ErrPatientNotFound, got %v", err)
	}
}

func TestInitializeAllSkipsPatientsWithSteps(t *testing.T) {
	repo := newMockStepRepo()
	withSteps := uuid.New()
	without := uuid.New()
	patients := &mockPatientSource{patients: map[uuid.UUID]*PatientInfo{
		withSteps: {ID: withSteps, CancerType: strptr("prostate"), Status: "ACTIVE"},
		without:   {ID: without, CancerType: strptr("kidney"), Status: "ACTIVE"},
	}}
	svc := newTestService(repo, patients, newMockAlerter())

	if err := repo.Create(context.Background(), &Step{PatientID: withSteps, StepKey: "x", Name: "X", JourneyStage: StageScreening, Status: StatusPending}); err != nil {
		t.Fatal(err)
	}

	result, err := svc.InitializeAllPatientsSteps(context.Background())
	if err != nil {
		t.Fatalf("InitializeAllPatientsSteps: %v", err)
	}
	if result.Initialized != 1 || result.Skipped != 1 || len(result.Errors) != 0 {
		t.Fatalf("got initialized=%d skipped=%d errors=%v", result.Initialized, result.Skipped, result.Errors)
	}
}

func TestInitializeAllCollectsPerPatientErrors(t *testing.T) {
	repo := newMockStepRepo()
	healthy := uuid.New()
	gone := uuid.New()
	patients := &mockPatientSource{
		patients: map[uuid.UUID]*PatientInfo{
			healthy: {ID: healthy, CancerType: strptr("breast"), Status: "ACTIVE"},
		},
		extraListed: []*PatientInfo{{ID: gone, Status: "ACTIVE"}},
	}
	svc := newTestService(repo, patients, newMockAlerter())

	result, err := svc.InitializeAllPatientsSteps(context.Background())
	if err != nil {
		t.Fatalf("InitializeAllPatientsSteps: %v", err)
	}
	if result.Initialized != 1 {
		t.Fatalf("healthy patient should still be initialized, got %d", result.Initialized)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected 1 error, got %v", result.Errors)
	}
	if !strings.Contains(result.Errors[0], gone.String()) {
		t.Fatalf("error should name the failing patient: %q", result.Errors[0])
	}
}

func TestCheckOverdueStepsMarksAndAlerts(t *testing.T) {
	repo := newMockStepRepo()
	patientID := uuid.New()
	patients := &mockPatientSource{patients: map[uuid.UUID]*PatientInfo{
		patientID: {ID: patientID, CancerType: strptr("breast"), Status: "ACTIVE"},
	}}
	alerts := newMockAlerter()
	svc := newTestService(repo, patients, alerts)

	past := time.Now().AddDate(0, 0, -5)
	future := time.Now().AddDate(0, 0, 5)
	overdue := &Step{PatientID: patientID, StepKey: "breast_biopsy", Name: "Breast biopsy",
		JourneyStage: StageDiagnosis, Status: StatusPending, IsRequired: true, DueDate: &past}
	onTime := &Step{PatientID: patientID, StepKey: "mammography", Name: "Mammography",
		JourneyStage: StageScreening, Status: StatusPending, IsRequired: true, DueDate: &future}
	for _, s := range []*Step{overdue, onTime} {
		if err := repo.Create(context.Background(), s); err != nil {
			t.Fatal(err)
		}
	}

	result, err := svc.CheckOverdueSteps(context.Background())
	if err != nil {
		t.Fatalf("CheckOverdueSteps: %v", err)
	}
	if result.Checked != 1 || result.MarkedOverdue != 1 || result.AlertsCreated != 1 {
		t.Fatalf("got checked=%d marked=%d alerts=%d", result.Checked, result.MarkedOverdue, result.AlertsCreated)
	}
	got := repo.records[overdue.ID]
	if got.Status != StatusOverdue {
		t.Fatalf("expected OVERDUE, got %s", got.Status)
	}
	if repo.records[onTime.ID].Status != StatusPending {
		t.Fatal("on-time step should stay PENDING")
	}
	if len(alerts.inputs) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts.inputs))
	}
	in := alerts.inputs[0]
	if in.Severity != SeverityHigh {
		t.Fatalf("required DIAGNOSIS step 5 days overdue should be HIGH, got %s", in.Severity)
	}
	if in.DaysOverdue != 5 {
		t.Fatalf("expected 5 days overdue, got %d", in.DaysOverdue)
	}
}

func TestCheckOverdueStepsDeduplicatesAlerts(t *testing.T) {
	repo := newMockStepRepo()
	patientID := uuid.New()
	patients := &mockPatientSource{patients: map[uuid.UUID]*PatientInfo{
		patientID: {ID: patientID, Status: "ACTIVE"},
	}}
	alerts := newMockAlerter()
	svc := newTestService(repo, patients, alerts)

	past := time.Now().AddDate(0, 0, -3)
	st := &Step{PatientID: patientID, StepKey: "biopsy", Name: "Biopsy",
		JourneyStage: StageDiagnosis, Status: StatusPending, IsRequired: true, DueDate: &past}
	if err := repo.Create(context.Background(), st); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.CheckOverdueSteps(context.Background()); err != nil {
		t.Fatal(err)
	}
	// Reset the step so the next sweep picks it up again while the first
	// alert is still open.
	repo.records[st.ID].Status = StatusPending

	result, err := svc.CheckOverdueStepsForPatient(context.Background(), patientID)
	if err != nil {
		t.Fatal(err)
	}
	if result.MarkedOverdue != 1 || result.AlertsCreated != 0 {
		t.Fatalf("expected marked=1 alerts=0, got marked=%d alerts=%d", result.MarkedOverdue, result.AlertsCreated)
	}
	if len(alerts.inputs) != 1 {
		t.Fatalf("expected exactly 1 alert, got %d", len(alerts.inputs))
	}
}

func TestUpdateStepCompletionSetsTimestamps(t *testing.T) {
	repo := newMockStepRepo()
	patientID := uuid.New()
	patients := &mockPatientSource{patients: map[uuid.UUID]*PatientInfo{
		patientID: {ID: patientID, Status: "ACTIVE"},
	}}
	svc := newTestService(repo, patients, newMockAlerter())

	st := &Step{PatientID: patientID, StepKey: "ct_scan", Name: "CT scan",
		JourneyStage: StageDiagnosis, Status: StatusInProgress}
	if err := repo.Create(context.Background(), st); err != nil {
		t.Fatal(err)
	}

	completed := StatusCompleted
	updated, err := svc.UpdateStep(context.Background(), st.ID, UpdateStepInput{Status: &completed})
	if err != nil {
		t.Fatalf("UpdateStep: %v", err)
	}
	if !updated.IsCompleted {
		t.Fatal("is_completed should be true after completion")
	}
	if updated.CompletedAt == nil || updated.ActualDate == nil {
		t.Fatal("completion timestamps should be set")
	}
}

func TestUpdateStepOverdueCannotRevert(t *testing.T) {
	repo := newMockStepRepo()
	patientID := uuid.New()
	patients := &mockPatientSource{patients: map[uuid.UUID]*PatientInfo{
		patientID: {ID: patientID, Status: "ACTIVE"},
	}}
	svc := newTestService(repo, patients, newMockAlerter())

	past := time.Now().AddDate(0, 0, -2)
	st := &Step{PatientID: patientID, StepKey: "surgery", Name: "Surgery",
		JourneyStage: StageTreatment, Status: StatusOverdue, IsRequired: true, DueDate: &past}
	if err := repo.Create(context.Background(), st); err != nil {
		t.Fatal(err)
	}

	pending := StatusPending
	if _, err := svc.UpdateStep(context.Background(), st.ID, UpdateStepInput{Status: &pending}); err == nil {
		t.Fatal("expected error reverting OVERDUE to PENDING")
	}

	completed := StatusCompleted
	updated, err := svc.UpdateStep(context.Background(), st.ID, UpdateStepInput{Status: &completed})
	if err != nil {
		t.Fatalf("completing an overdue step should work: %v", err)
	}
	if updated.Status != StatusCompleted || !updated.IsCompleted {
		t.Fatalf("got status=%s is_completed=%v", updated.Status, updated.IsCompleted)
	}
}

func TestUpdateStepUncompleteRestoresOverdue(t *testing.T) {
	repo := newMockStepRepo()
	patientID := uuid.New()
	patients := &mockPatientSource{patients: map[uuid.UUID]*PatientInfo{
		patientID: {ID: patientID, Status: "ACTIVE"},
	}}
	svc := newTestService(repo, patients, newMockAlerter())

	past := time.Now().AddDate(0, 0, -2)
	st := &Step{PatientID: patientID, StepKey: "followup_visit", Name: "Follow-up visit",
		JourneyStage: StageFollowUp, Status: StatusOverdue, DueDate: &past}
	if err := repo.Create(context.Background(), st); err != nil {
		t.Fatal(err)
	}

	completed := StatusCompleted
	if _, err := svc.UpdateStep(context.Background(), st.ID, UpdateStepInput{Status: &completed}); err != nil {
		t.Fatal(err)
	}

	uncomplete := false
	updated, err := svc.UpdateStep(context.Background(), st.ID, UpdateStepInput{IsCompleted: &uncomplete})
	if err != nil {
		t.Fatalf("UpdateStep: %v", err)
	}
	if updated.Status != StatusOverdue {
		t.Fatalf("expected OVERDUE after un-completing, got %s", updated.Status)
	}
	if updated.CompletedAt != nil || updated.ActualDate != nil {
		t.Fatal("completion timestamps should be cleared")
	}
}

func TestCreateMissingStepsForStage(t *testing.T) {
	repo := newMockStepRepo()
	patientID := uuid.New()
	patients := &mockPatientSource{patients: map[uuid.UUID]*PatientInfo{
		patientID: {ID: patientID, CancerType: strptr("colorectal"), Status: "ACTIVE"},
	}}
	svc := newTestService(repo, patients, newMockAlerter())

	templates := TemplatesForStage("colorectal", false, StageDiagnosis)
	if len(templates) == 0 {
		t.Fatal("expected DIAGNOSIS templates for colorectal")
	}
	existing := &Step{PatientID: patientID, StepKey: templates[0].StepKey, Name: templates[0].Name,
		JourneyStage: StageDiagnosis, Status: StatusCompleted, IsCompleted: true}
	if err := repo.Create(context.Background(), existing); err != nil {
		t.Fatal(err)
	}

	created, err := svc.CreateMissingStepsForStage(context.Background(), patientID, StageDiagnosis)
	if err != nil {
		t.Fatalf("CreateMissingStepsForStage: %v", err)
	}
	if len(created) != len(templates)-1 {
		t.Fatalf("expected %d created, got %d", len(templates)-1, len(created))
	}
	for _, s := range created {
		if s.StepKey == existing.StepKey {
			t.Fatal("existing step was recreated")
		}
	}
}

func TestGetStepsByJourneyStageRejectsInvalidStage(t *testing.T) {
	patientID := uuid.New()
	patients := &mockPatientSource{patients: map[uuid.UUID]*PatientInfo{
		patientID: {ID: patientID, Status: "ACTIVE"},
	}}
	svc := newTestService(newMockStepRepo(), patients, newMockAlerter())

	if _, err := svc.GetStepsByJourneyStage(context.Background(), patientID, "RECOVERY"); err == nil {
		t.Fatal("expected error for invalid stage")
	}
}
