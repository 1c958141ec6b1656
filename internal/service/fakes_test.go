package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/sia-krs-api/internal/models"
	"github.com/noah-isme/sia-krs-api/internal/repository"
)

// memoryKRS mirrors the repository contract: unique (student, term, course), set-level lock on
// select, row-level check on deselect, all-or-nothing batch inserts.
type memoryKRS struct {
	mu       sync.Mutex
	seq      int
	records  map[string]models.EnrollmentRecord
	terms    map[string]models.Term
	students map[string]models.StudentEnrollmentContext
	exchange map[string]map[string]bool
	courses  []models.CourseOffering

	failBatchAtRow int
	failReads      int
	readCalls      int
}

func newMemoryKRS() *memoryKRS {
	return &memoryKRS{
		records:  make(map[string]models.EnrollmentRecord),
		terms:    make(map[string]models.Term),
		students: make(map[string]models.StudentEnrollmentContext),
		exchange: make(map[string]map[string]bool),
	}
}

func (m *memoryKRS) addTerm(term models.Term) { m.terms[term.ID] = term }

func (m *memoryKRS) addStudent(st models.StudentEnrollmentContext) {
	st.Active = true
	m.students[st.StudentID] = st
}

func (m *memoryKRS) addCourse(c models.CourseOffering) { m.courses = append(m.courses, c) }

func (m *memoryKRS) markExchange(studentID, termID string) {
	if m.exchange[termID] == nil {
		m.exchange[termID] = make(map[string]bool)
	}
	m.exchange[termID][studentID] = true
}

func (m *memoryKRS) seed(studentID, termID, courseID string, status models.EnrollmentStatus) string {
	m.seq++
	id := fmt.Sprintf("rec-%d", m.seq)
	m.records[id] = models.EnrollmentRecord{ID: id, StudentID: studentID, TermID: termID, CourseID: courseID, Status: status}
	return id
}

func (m *memoryKRS) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func (m *memoryKRS) course(id string) (models.CourseOffering, bool) {
	for _, c := range m.courses {
		if c.ID == id {
			return c, true
		}
	}
	return models.CourseOffering{}, false
}

func (m *memoryKRS) transientRead() error {
	m.readCalls++
	if m.failReads > 0 {
		m.failReads--
		return errors.New("connection reset by peer")
	}
	return nil
}

// termReader

func (m *memoryKRS) FindByID(ctx context.Context, id string) (*models.Term, error) {
	term, ok := m.terms[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &term, nil
}

func (m *memoryKRS) FindCurrent(ctx context.Context) (*models.Term, error) {
	for _, term := range m.terms {
		if term.IsCurrent {
			t := term
			return &t, nil
		}
	}
	return nil, sql.ErrNoRows
}

// studentDirectory

func (m *memoryKRS) withExchange(st models.StudentEnrollmentContext, termID string) models.StudentEnrollmentContext {
	st.IsExchange = m.exchange[termID][st.StudentID]
	return st
}

func (m *memoryKRS) FindContext(ctx context.Context, studentID, termID string) (*models.StudentEnrollmentContext, error) {
	st, ok := m.students[studentID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	st = m.withExchange(st, termID)
	return &st, nil
}

func (m *memoryKRS) FindContexts(ctx context.Context, ids []string, termID string) ([]models.StudentEnrollmentContext, error) {
	var result []models.StudentEnrollmentContext
	for _, id := range ids {
		if st, ok := m.students[id]; ok {
			result = append(result, m.withExchange(st, termID))
		}
	}
	return result, nil
}

func (m *memoryKRS) ListUnenrolled(ctx context.Context, termID string) ([]models.StudentEnrollmentContext, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.transientRead(); err != nil {
		return nil, err
	}
	enrolled := make(map[string]bool)
	for _, rec := range m.records {
		if rec.TermID == termID {
			enrolled[rec.StudentID] = true
		}
	}
	var result []models.StudentEnrollmentContext
	for _, st := range m.students {
		if st.Active && !enrolled[st.StudentID] {
			result = append(result, m.withExchange(st, termID))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].NIM < result[j].NIM })
	return result, nil
}

// courseCatalog

type memoryCourses struct{ *memoryKRS }

func (c memoryCourses) List(ctx context.Context) ([]models.CourseOffering, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.transientRead(); err != nil {
		return nil, err
	}
	return append([]models.CourseOffering(nil), c.courses...), nil
}

func (c memoryCourses) ListByParity(ctx context.Context, odd bool, semester int) ([]models.CourseOffering, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.transientRead(); err != nil {
		return nil, err
	}
	var result []models.CourseOffering
	for _, course := range c.courses {
		if (course.DefaultSemester%2 == 1) != odd {
			continue
		}
		if semester > 0 && course.DefaultSemester != semester {
			continue
		}
		result = append(result, course)
	}
	return result, nil
}

func (c memoryCourses) FindByIDs(ctx context.Context, ids []string) ([]models.CourseOffering, error) {
	var result []models.CourseOffering
	for _, id := range ids {
		if course, ok := c.course(id); ok {
			result = append(result, course)
		}
	}
	return result, nil
}

// enrollment store

type memoryRecords struct{ *memoryKRS }

func (r memoryRecords) FindByID(ctx context.Context, id string) (*models.EnrollmentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &rec, nil
}

func (r memoryRecords) ListByStudentTerm(ctx context.Context, studentID, termID string) ([]models.EnrollmentRecordDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []models.EnrollmentRecordDetail
	for _, rec := range r.records {
		if rec.StudentID != studentID || rec.TermID != termID {
			continue
		}
		course, _ := r.course(rec.CourseID)
		result = append(result, models.EnrollmentRecordDetail{
			EnrollmentRecord: rec,
			CourseCode:       course.Code,
			CourseName:       course.Name,
			Credits:          course.Credits,
			CourseCategory:   course.Category,
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CourseID < result[j].CourseID })
	return result, nil
}

func (r memoryRecords) CreateDraft(ctx context.Context, record *models.EnrollmentRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.StudentID == record.StudentID && rec.TermID == record.TermID && rec.Status != models.EnrollmentStatusDraft {
			return repository.ErrTermLocked
		}
	}
	for _, rec := range r.records {
		if rec.StudentID == record.StudentID && rec.TermID == record.TermID && rec.CourseID == record.CourseID {
			return &repository.DuplicateError{StudentID: rec.StudentID, TermID: rec.TermID, CourseID: rec.CourseID}
		}
	}
	r.seq++
	record.ID = fmt.Sprintf("rec-%d", r.seq)
	record.Status = models.EnrollmentStatusDraft
	record.CreatedAt = time.Now().UTC()
	record.UpdatedAt = record.CreatedAt
	r.records[record.ID] = *record
	return nil
}

func (r memoryRecords) DeleteDraft(ctx context.Context, id string) (*models.EnrollmentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if rec.Status != models.EnrollmentStatusDraft {
		return &rec, repository.ErrNotDraft
	}
	delete(r.records, id)
	return &rec, nil
}

func (r memoryRecords) TransitionAll(ctx context.Context, params repository.TransitionParams) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, rec := range r.records {
		if rec.StudentID == params.StudentID && rec.TermID == params.TermID && rec.Status == params.From {
			rec.Status = params.To
			rec.ReviewedBy = params.ReviewedBy
			r.records[id] = rec
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (r memoryRecords) ListSubmissions(ctx context.Context, filter models.SubmissionFilter) ([]models.SubmissionSummary, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byStudent := make(map[string]*models.SubmissionSummary)
	for _, rec := range r.records {
		if rec.TermID != filter.TermID || rec.Status != filter.Status {
			continue
		}
		sum, ok := byStudent[rec.StudentID]
		if !ok {
			st := r.students[rec.StudentID]
			sum = &models.SubmissionSummary{StudentID: rec.StudentID, NIM: st.NIM, FullName: st.FullName, ProgramID: st.ProgramID}
			byStudent[rec.StudentID] = sum
		}
		course, _ := r.course(rec.CourseID)
		sum.CourseCount++
		sum.TotalCredits += course.Credits
	}
	result := make([]models.SubmissionSummary, 0, len(byStudent))
	for _, sum := range byStudent {
		result = append(result, *sum)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StudentID < result[j].StudentID })
	return result, len(result), nil
}

func (r memoryRecords) CreateBatch(ctx context.Context, records []models.EnrollmentRecord, chunkSize int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	staged := make(map[string]models.EnrollmentRecord, len(records))
	keys := make(map[string]bool)
	for _, rec := range r.records {
		keys[rec.StudentID+"|"+rec.TermID+"|"+rec.CourseID] = true
	}
	seq := r.seq
	for i := range records {
		if r.failBatchAtRow > 0 && i+1 == r.failBatchAtRow {
			return errors.New("simulated store failure")
		}
		rec := &records[i]
		key := rec.StudentID + "|" + rec.TermID + "|" + rec.CourseID
		if keys[key] {
			return &repository.DuplicateError{StudentID: rec.StudentID, TermID: rec.TermID, CourseID: rec.CourseID}
		}
		keys[key] = true
		seq++
		rec.ID = fmt.Sprintf("rec-%d", seq)
		staged[rec.ID] = *rec
	}
	r.seq = seq
	for id, rec := range staged {
		r.records[id] = rec
	}
	return nil
}

func (r memoryRecords) CreditTotals(ctx context.Context, termID string, studentIDs []string) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	totals := make(map[string]int)
	wanted := make(map[string]bool, len(studentIDs))
	for _, id := range studentIDs {
		wanted[id] = true
	}
	for _, rec := range r.records {
		if rec.TermID == termID && wanted[rec.StudentID] {
			course, _ := r.course(rec.CourseID)
			totals[rec.StudentID] += course.Credits
		}
	}
	return totals, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.EnrollmentEvent
}

func (p *recordingPublisher) Publish(event models.EnrollmentEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) types() []models.EnrollmentEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]models.EnrollmentEventType, len(p.events))
	for i, e := range p.events {
		types[i] = e.Type
	}
	return types
}

// fixture builds a term T1 (odd, 2024/2025) with students A, B, C of the IF program entering 2024
// and courses X (sem 1), Y (sem 1), Z (sem 2) plus exchange course M (sem 1).
type fixture struct {
	store     *memoryKRS
	publisher *recordingPublisher
	catalog   *CatalogService
	krs       *KRSService
	batch     *BatchService
}

func newFixture() *fixture {
	store := newMemoryKRS()
	store.addTerm(models.Term{ID: "T1", Name: "Ganjil 2024/2025", AcademicYear: "2024/2025", Parity: models.TermParityOdd, IsCurrent: true})
	store.addTerm(models.Term{ID: "T2", Name: "Genap 2024/2025", AcademicYear: "2024/2025", Parity: models.TermParityEven})
	for _, st := range []models.StudentEnrollmentContext{
		{StudentID: "A", NIM: "2401001", FullName: "Ayu", ProgramID: "IF", EntryYear: 2024},
		{StudentID: "B", NIM: "2401002", FullName: "Bima", ProgramID: "IF", EntryYear: 2024},
		{StudentID: "C", NIM: "2401003", FullName: "Citra", ProgramID: "IF", EntryYear: 2024},
	} {
		store.addStudent(st)
	}
	store.addCourse(models.CourseOffering{ID: "X", Code: "IF101", Name: "Algoritma", Credits: 3, DefaultSemester: 1, Category: models.CourseCategoryRegular, EligiblePrograms: []string{"IF"}})
	store.addCourse(models.CourseOffering{ID: "Y", Code: "IF102", Name: "Matematika Diskrit", Credits: 3, DefaultSemester: 1, Category: models.CourseCategoryRegular, EligiblePrograms: []string{"IF"}})
	store.addCourse(models.CourseOffering{ID: "Z", Code: "IF201", Name: "Struktur Data", Credits: 4, DefaultSemester: 2, Category: models.CourseCategoryRegular, EligiblePrograms: []string{"IF"}})
	store.addCourse(models.CourseOffering{ID: "M", Code: "MBKM01", Name: "Magang Industri", Credits: 20, DefaultSemester: 1, Category: models.CourseCategoryExchange})

	publisher := &recordingPublisher{}
	policy := ReadRetryPolicy{Attempts: 3, Delay: time.Millisecond}
	catalog := NewCatalogService(memoryCourses{store}, store, store, memoryRecords{store}, nil, policy, nil, nil)
	krs := NewKRSService(memoryRecords{store}, store, store, memoryCourses{store}, publisher, 24, nil, nil)
	batch := NewBatchService(catalog, store, memoryCourses{store}, memoryRecords{store}, publisher, BatchOptions{ChunkSize: 2, CreditCeiling: 24, RetryPolicy: policy}, nil, nil, nil)
	return &fixture{store: store, publisher: publisher, catalog: catalog, krs: krs, batch: batch}
}
