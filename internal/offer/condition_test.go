package offer

import (
	"context"
	"errors"
	"testing"

	"learnstore/internal/client"
	"learnstore/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePrograms struct {
	program *domain.Program
	err     error
	calls   int
}

func (f *fakePrograms) GetProgram(_ context.Context, _ domain.Site, _ string) (*domain.Program, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.program, nil
}

type fakeEnrollments struct {
	enrollments []domain.Enrollment
	err         error
}

func (f *fakeEnrollments) GetEnrollments(_ context.Context, _ domain.Site, _ string) ([]domain.Enrollment, error) {
	return f.enrollments, f.err
}

func enrollment(courseID, mode string) domain.Enrollment {
	var e domain.Enrollment
	e.CourseDetails.CourseID = courseID
	e.Mode = mode
	e.IsActive = true
	return e
}

// twoCourseProgram has courses edX+C1 (verified S1, audit A1) and edX+C2 (verified S2).
func twoCourseProgram() *domain.Program {
	return &domain.Program{
		UUID:                "prog-1",
		ApplicableSeatTypes: []string{"verified"},
		Courses: []domain.Course{
			{Key: "edX+C1", CourseRuns: []domain.CourseRun{{Seats: []domain.Seat{{SKU: "S1", Type: "verified"}, {SKU: "A1", Type: "audit"}}}}},
			{Key: "edX+C2", CourseRuns: []domain.CourseRun{{Seats: []domain.Seat{{SKU: "S2", Type: "verified"}}}}},
		},
	}
}

func seatLine(id, sku string, priceCents int64) domain.Line {
	return domain.Line{
		ID:             id,
		Quantity:       1,
		UnitPriceCents: priceCents,
		Product: domain.Product{
			ID:             "p-" + sku,
			SKU:            sku,
			ProductClass:   domain.ProductClassSeat,
			PriceCents:     priceCents,
			IsDiscountable: true,
		},
	}
}

func basketWith(lines ...domain.Line) *domain.Basket {
	return &domain.Basket{ID: "b1", Owner: "learner", Status: domain.BasketOpen, Lines: lines}
}

func newCondition(p *fakePrograms, e *fakeEnrollments) *ProgramCondition {
	return NewProgramCondition("prog-1", p, e, nil)
}

func TestIsSatisfied_EmptyBasket(t *testing.T) {
	p := &fakePrograms{program: twoCourseProgram()}
	cond := newCondition(p, &fakeEnrollments{})
	assert.False(t, cond.IsSatisfied(context.Background(), domain.Site{}, basketWith()))
	assert.Equal(t, 0, p.calls, "empty basket should not reach the catalog")
}

func TestIsSatisfied_RequiresOneSKUPerCourse(t *testing.T) {
	cond := newCondition(&fakePrograms{program: twoCourseProgram()}, &fakeEnrollments{})
	ctx := context.Background()

	assert.False(t, cond.IsSatisfied(ctx, domain.Site{}, basketWith(seatLine("l1", "S1", 1000))))
	assert.True(t, cond.IsSatisfied(ctx, domain.Site{}, basketWith(seatLine("l1", "S1", 1000), seatLine("l2", "S2", 1000))))
}

func TestIsSatisfied_SingleSKUCannotCoverTwoCourses(t *testing.T) {
	shared := &domain.Program{
		ApplicableSeatTypes: []string{"verified"},
		Courses: []domain.Course{
			{Key: "edX+C1", CourseRuns: []domain.CourseRun{{Seats: []domain.Seat{{SKU: "SHARED", Type: "verified"}}}}},
			{Key: "edX+C2", CourseRuns: []domain.CourseRun{{Seats: []domain.Seat{{SKU: "SHARED", Type: "verified"}}}}},
		},
	}
	cond := newCondition(&fakePrograms{program: shared}, &fakeEnrollments{})
	assert.False(t, cond.IsSatisfied(context.Background(), domain.Site{}, basketWith(seatLine("l1", "SHARED", 1000))))
}

func TestIsSatisfied_IgnoresNonApplicableSeatTypes(t *testing.T) {
	cond := newCondition(&fakePrograms{program: twoCourseProgram()}, &fakeEnrollments{})
	assert.False(t, cond.IsSatisfied(context.Background(), domain.Site{}, basketWith(seatLine("l1", "A1", 0), seatLine("l2", "S2", 1000))))
}

func TestIsSatisfied_EnrollmentSubstitutesForSKU(t *testing.T) {
	enrolled := &fakeEnrollments{enrollments: []domain.Enrollment{enrollment("course-v1:edX+C1+1T2025", "verified")}}
	cond := newCondition(&fakePrograms{program: twoCourseProgram()}, enrolled)
	assert.True(t, cond.IsSatisfied(context.Background(), domain.Site{}, basketWith(seatLine("l2", "S2", 1000))))
}

func TestIsSatisfied_EnrollmentInWrongModeDoesNotCount(t *testing.T) {
	audit := &fakeEnrollments{enrollments: []domain.Enrollment{enrollment("course-v1:edX+C1+1T2025", "audit")}}
	cond := newCondition(&fakePrograms{program: twoCourseProgram()}, audit)
	assert.False(t, cond.IsSatisfied(context.Background(), domain.Site{}, basketWith(seatLine("l2", "S2", 1000))))
}

func TestIsSatisfied_NoSKUsLeftForLaterCourse(t *testing.T) {
	enrolled := &fakeEnrollments{enrollments: []domain.Enrollment{enrollment("course-v1:edX+C2+1T2025", "verified")}}
	program := twoCourseProgram()
	program.Courses = append(program.Courses, domain.Course{Key: "edX+C3", CourseRuns: []domain.CourseRun{{Seats: []domain.Seat{{SKU: "S3", Type: "verified"}}}}})
	cond := newCondition(&fakePrograms{program: program}, enrolled)
	assert.False(t, cond.IsSatisfied(context.Background(), domain.Site{}, basketWith(seatLine("l1", "S1", 1000))))
}

func TestIsSatisfied_FailsClosedOnLookupErrors(t *testing.T) {
	ctx := context.Background()
	b := basketWith(seatLine("l1", "S1", 1000), seatLine("l2", "S2", 1000))

	for name, err := range map[string]error{
		"timeout":   client.ErrUnavailable,
		"not found": domain.ErrNotFound,
		"other":     errors.New("decode failure"),
	} {
		t.Run("program "+name, func(t *testing.T) {
			cond := newCondition(&fakePrograms{err: err}, &fakeEnrollments{})
			assert.False(t, cond.IsSatisfied(ctx, domain.Site{}, b))
		})
	}

	t.Run("enrollments", func(t *testing.T) {
		cond := newCondition(&fakePrograms{program: twoCourseProgram()}, &fakeEnrollments{err: client.ErrUnavailable})
		assert.False(t, cond.IsSatisfied(ctx, domain.Site{}, b))
	})
}

func TestCanApplyCondition(t *testing.T) {
	cond := newCondition(&fakePrograms{program: twoCourseProgram()}, &fakeEnrollments{})
	ctx := context.Background()

	assert.True(t, cond.CanApplyCondition(ctx, domain.Site{}, seatLine("l1", "S1", 1000)))
	assert.False(t, cond.CanApplyCondition(ctx, domain.Site{}, seatLine("l1", "OTHER", 1000)))

	notDiscountable := seatLine("l1", "S1", 1000)
	notDiscountable.Product.IsDiscountable = false
	assert.False(t, cond.CanApplyCondition(ctx, domain.Site{}, notDiscountable))

	noStockRecord := seatLine("l1", "", 1000)
	assert.False(t, cond.CanApplyCondition(ctx, domain.Site{}, noStockRecord))

	failing := newCondition(&fakePrograms{err: client.ErrUnavailable}, &fakeEnrollments{})
	assert.False(t, failing.CanApplyCondition(ctx, domain.Site{}, seatLine("l1", "S1", 1000)))
}

func TestApplicableLines_MostExpensiveFirst(t *testing.T) {
	program := &domain.Program{
		ApplicableSeatTypes: []string{"verified"},
		Courses: []domain.Course{
			{Key: "A", CourseRuns: []domain.CourseRun{{Seats: []domain.Seat{{SKU: "S10", Type: "verified"}}}}},
			{Key: "B", CourseRuns: []domain.CourseRun{{Seats: []domain.Seat{{SKU: "S25", Type: "verified"}}}}},
			{Key: "C", CourseRuns: []domain.CourseRun{{Seats: []domain.Seat{{SKU: "S15", Type: "verified"}}}}},
			{Key: "D", CourseRuns: []domain.CourseRun{{Seats: []domain.Seat{{SKU: "FREE", Type: "verified"}}}}},
		},
	}
	p := &fakePrograms{program: program}
	cond := newCondition(p, &fakeEnrollments{})
	b := basketWith(seatLine("l10", "S10", 10), seatLine("l25", "S25", 25), seatLine("l15", "S15", 15), seatLine("lfree", "FREE", 0))

	got := cond.ApplicableLines(context.Background(), domain.Site{}, b, nil, true)
	require.Len(t, got, 3)
	assert.Equal(t, []int64{25, 15, 10}, []int64{got[0].PriceCents, got[1].PriceCents, got[2].PriceCents})
	assert.Equal(t, "l25", got[0].Line.ID)
	assert.Equal(t, 1, p.calls, "applicable skus fetched once per call")

	asc := cond.ApplicableLines(context.Background(), domain.Site{}, b, nil, false)
	require.Len(t, asc, 3)
	assert.Equal(t, int64(10), asc[0].PriceCents)
}

func TestConsumeItems_OneUnitPerLine(t *testing.T) {
	cond := newCondition(&fakePrograms{program: twoCourseProgram()}, &fakeEnrollments{})
	l1 := seatLine("l1", "S1", 1000)
	l1.Quantity = 3
	l2 := seatLine("l2", "S2", 1000)
	l2.Consumed = 1
	b := basketWith(l1, l2)

	cond.ConsumeItems(b, []AffectedLine{{Line: &b.Lines[0]}, {Line: &b.Lines[1]}})

	assert.Equal(t, 2, b.Lines[0].QuantityWithoutDiscount())
	assert.Equal(t, 0, b.Lines[1].QuantityWithoutDiscount())
	assert.Equal(t, 1, b.Lines[1].Consumed, "fully consumed line stays at its quantity")
}
