package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"deptdesk/config"
	"deptdesk/internal/dto"
	"deptdesk/internal/model"
	"deptdesk/internal/rules"
)

// ── 测试辅助 ──

func testBookingConfig() *config.Config {
	return &config.Config{
		Booking: config.BookingConfig{
			Halls:   []string{"A101", "B202", "Main Auditorium"},
			LockTTL: time.Second,
		},
	}
}

func setupTestBookingService(locker HallLocker) (BookingService, *testEnv) {
	env := newTestEnv()
	svc := NewBookingService(testBookingConfig(), env.repo, locker, env.publisher, zap.NewNop())
	return svc, env
}

func bookingReq(hall, date, start, end string) *dto.BookingRequest {
	return &dto.BookingRequest{
		Hall:         hall,
		Date:         date,
		StartTime:    start,
		EndTime:      end,
		CourseNumber: "CS101",
		CourseName:   "Intro to Computing",
	}
}

func seedBooking(env *testEnv, id, hall, date, start, end, ownerID, ownerName string) {
	b := model.HallBooking{
		BookingID: id, Hall: hall, Date: date, StartTime: start, EndTime: end,
		CourseNumber: "MA201", CourseName: "Linear Algebra", OwnerName: ownerName,
	}
	if ownerID != "" {
		b.OwnerID = &ownerID
	}
	env.bookings.put(b)
}

// ── Create ──

func TestBookingService_Create_HallScenario(t *testing.T) {
	svc, env := setupTestBookingService(nil)
	ctx := context.Background()
	seedBooking(env, "b1", "A101", "2025-11-02", "09:00", "10:00", "u-chen", "Dr. Chen")

	_, err := svc.Create(ctx, bookingReq("A101", "2025-11-02", "09:30", "10:30"), "u-rao")
	if !errors.Is(err, rules.ErrHallConflict) {
		t.Fatalf("expected ErrHallConflict, got %v", err)
	}
	if !strings.Contains(err.Error(), "A101") {
		t.Errorf("conflict message should name the hall: %q", err.Error())
	}

	if _, err := svc.Create(ctx, bookingReq("A101", "2025-11-02", "10:00", "11:00"), "u-rao"); err != nil {
		t.Fatalf("back-to-back booking should succeed: %v", err)
	}
	if _, err := svc.Create(ctx, bookingReq("B202", "2025-11-02", "09:30", "10:30"), "u-rao"); err != nil {
		t.Fatalf("other hall should succeed: %v", err)
	}

	if len(env.bookings.bookings) != 3 {
		t.Errorf("expected 3 stored bookings, got %d", len(env.bookings.bookings))
	}
}

func TestBookingService_Create_RecordsOwnerAndCanonicalizes(t *testing.T) {
	svc, env := setupTestBookingService(nil)

	resp, err := svc.Create(context.Background(), bookingReq(" main auditorium ", "2025-11-02", "9:00", "10:00:00"), "u-rao")
	if err != nil {
		t.Fatalf("Create should succeed: %v", err)
	}
	if resp.Hall != "Main Auditorium" {
		t.Errorf("expected canonical hall, got %q", resp.Hall)
	}
	if resp.StartTime != "09:00" || resp.EndTime != "10:00" {
		t.Errorf("expected HH:MM clocks, got %s-%s", resp.StartTime, resp.EndTime)
	}
	if resp.OwnerName != "Dr. Rao" {
		t.Errorf("expected owner Dr. Rao, got %q", resp.OwnerName)
	}

	stored := env.bookings.bookings[resp.ID]
	if stored.OwnerID == nil || *stored.OwnerID != "u-rao" {
		t.Errorf("expected owner id u-rao, got %v", stored.OwnerID)
	}
	if got := env.publisher.keys(); len(got) != 1 || got[0] != "booking.created" {
		t.Errorf("expected booking.created event, got %v", got)
	}
}

func TestBookingService_Create_Rejections(t *testing.T) {
	tests := []struct {
		name string
		req  *dto.BookingRequest
		want error
	}{
		{"missing course name", &dto.BookingRequest{Hall: "A101", Date: "2025-11-02", StartTime: "09:00", EndTime: "10:00", CourseNumber: "CS101"}, rules.ErrIncompleteBooking},
		{"blank hall", bookingReq("  ", "2025-11-02", "09:00", "10:00"), rules.ErrIncompleteBooking},
		{"end before start", bookingReq("A101", "2025-11-02", "10:00", "09:00"), rules.ErrInvalidTimeRange},
		{"zero length", bookingReq("A101", "2025-11-02", "10:00", "10:00"), rules.ErrInvalidTimeRange},
		{"unknown hall", bookingReq("Z999", "2025-11-02", "09:00", "10:00"), ErrUnknownHall},
		{"bad date", bookingReq("A101", "02/11/2025", "09:00", "10:00"), ErrInvalidDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, env := setupTestBookingService(nil)
			_, err := svc.Create(context.Background(), tt.req, "u-rao")
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if len(env.bookings.bookings) != 0 {
				t.Error("rejected booking must not be stored")
			}
			if len(env.publisher.keys()) != 0 {
				t.Error("rejected booking must not publish")
			}
		})
	}
}

func TestBookingService_Create_UnknownUser(t *testing.T) {
	svc, _ := setupTestBookingService(nil)
	_, err := svc.Create(context.Background(), bookingReq("A101", "2025-11-02", "09:00", "10:00"), "ghost")
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestBookingService_Create_ConcurrentOverlapsOneWins(t *testing.T) {
	svc, env := setupTestBookingService(nil)
	ctx := context.Background()

	const writers = 10
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Create(ctx, bookingReq("A101", "2025-11-02", "09:00", "10:00"), "u-rao")
		}(i)
	}
	wg.Wait()

	ok, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, rules.ErrHallConflict):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 || conflicts != writers-1 {
		t.Fatalf("expected 1 success and %d conflicts, got %d/%d", writers-1, ok, conflicts)
	}
	if n := len(env.bookings.listByHallDate("A101", "2025-11-02")); n != 1 {
		t.Errorf("expected 1 stored booking, got %d", n)
	}
}

// ── 礼堂锁 ──

func TestBookingService_Create_WaitsForHeldLock(t *testing.T) {
	locker := newMockLocker()
	locker.held["lock:hall:A101:2025-11-02"] = true
	locker.freeAfter["lock:hall:A101:2025-11-02"] = 2
	svc, env := setupTestBookingService(locker)

	if _, err := svc.Create(context.Background(), bookingReq("A101", "2025-11-02", "09:00", "10:00"), "u-rao"); err != nil {
		t.Fatalf("write should succeed once the lock is released, got %v", err)
	}
	if len(env.bookings.bookings) != 1 {
		t.Errorf("expected 1 stored booking, got %d", len(env.bookings.bookings))
	}
	if len(locker.calls) != 3 {
		t.Errorf("expected 3 lock attempts, got %d", len(locker.calls))
	}
}

func TestBookingService_Create_LockBusyPastTTL(t *testing.T) {
	locker := newMockLocker()
	locker.held["lock:hall:A101:2025-11-02"] = true
	env := newTestEnv()
	cfg := testBookingConfig()
	cfg.Booking.LockTTL = 50 * time.Millisecond
	svc := NewBookingService(cfg, env.repo, locker, env.publisher, zap.NewNop())

	_, err := svc.Create(context.Background(), bookingReq("A101", "2025-11-02", "09:00", "10:00"), "u-rao")
	if !errors.Is(err, ErrHallBusy) {
		t.Fatalf("expected ErrHallBusy, got %v", err)
	}
	if len(env.bookings.bookings) != 0 {
		t.Error("busy write must not store")
	}
	if len(locker.calls) < 2 {
		t.Errorf("expected retries before giving up, got %d attempts", len(locker.calls))
	}
}

func TestBookingService_Create_LockWaitCancelled(t *testing.T) {
	locker := newMockLocker()
	locker.held["lock:hall:A101:2025-11-02"] = true
	svc, env := setupTestBookingService(locker)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := svc.Create(ctx, bookingReq("A101", "2025-11-02", "09:00", "10:00"), "u-rao")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context deadline, got %v", err)
	}
	if len(env.bookings.bookings) != 0 {
		t.Error("cancelled write must not store")
	}
}

func TestBookingService_Create_LockDownFallsBack(t *testing.T) {
	locker := newMockLocker()
	locker.err = errors.New("redis: connection refused")
	svc, _ := setupTestBookingService(locker)

	if _, err := svc.Create(context.Background(), bookingReq("A101", "2025-11-02", "09:00", "10:00"), "u-rao"); err != nil {
		t.Fatalf("expected fallback to database lock, got %v", err)
	}
}

func TestBookingService_Update_MoveLocksBothKeysInOrder(t *testing.T) {
	locker := newMockLocker()
	svc, env := setupTestBookingService(locker)
	seedBooking(env, "b1", "B202", "2025-11-02", "09:00", "10:00", "u-rao", "Dr. Rao")

	if _, err := svc.Update(context.Background(), "b1", bookingReq("A101", "2025-11-03", "09:00", "10:00"), "u-rao"); err != nil {
		t.Fatalf("Update should succeed: %v", err)
	}

	want := []string{"lock:hall:A101:2025-11-03", "lock:hall:B202:2025-11-02"}
	if len(locker.calls) != 2 || locker.calls[0] != want[0] || locker.calls[1] != want[1] {
		t.Errorf("expected locks %v, got %v", want, locker.calls)
	}
}

// ── Update ──

func TestBookingService_Update_ExcludesSelf(t *testing.T) {
	svc, env := setupTestBookingService(nil)
	seedBooking(env, "b1", "A101", "2025-11-02", "09:00", "10:00", "u-rao", "Dr. Rao")

	resp, err := svc.Update(context.Background(), "b1", bookingReq("A101", "2025-11-02", "09:30", "10:30"), "u-rao")
	if err != nil {
		t.Fatalf("shifting within own window should succeed: %v", err)
	}
	if resp.StartTime != "09:30" {
		t.Errorf("expected 09:30, got %s", resp.StartTime)
	}
}

func TestBookingService_Update_ConflictWithOther(t *testing.T) {
	svc, env := setupTestBookingService(nil)
	seedBooking(env, "b1", "A101", "2025-11-02", "09:00", "10:00", "u-rao", "Dr. Rao")
	seedBooking(env, "b2", "A101", "2025-11-02", "11:00", "12:00", "u-chen", "Dr. Chen")

	_, err := svc.Update(context.Background(), "b1", bookingReq("A101", "2025-11-02", "10:30", "11:30"), "u-rao")
	var ce *rules.ConflictError
	if !errors.As(err, &ce) || ce.BookingID != "b2" {
		t.Fatalf("expected conflict with b2, got %v", err)
	}
	if env.bookings.bookings["b1"].StartTime != "09:00" {
		t.Error("rejected update must leave the booking unchanged")
	}
}

func TestBookingService_Update_NotOwner(t *testing.T) {
	svc, env := setupTestBookingService(nil)
	seedBooking(env, "b1", "A101", "2025-11-02", "09:00", "10:00", "u-rao", "Dr. Rao")

	// admin 角色不能越过归属校验
	for _, caller := range []string{"u-chen", "u-admin"} {
		_, err := svc.Update(context.Background(), "b1", bookingReq("A101", "2025-11-02", "13:00", "14:00"), caller)
		if !errors.Is(err, rules.ErrNotOwner) {
			t.Errorf("%s: expected ErrNotOwner, got %v", caller, err)
		}
	}
}

func TestBookingService_Update_LegacyRowMatchesByName(t *testing.T) {
	svc, env := setupTestBookingService(nil)
	seedBooking(env, "b1", "A101", "2025-11-02", "09:00", "10:00", "", "  dr. rao ")

	if _, err := svc.Update(context.Background(), "b1", bookingReq("A101", "2025-11-02", "13:00", "14:00"), "u-rao"); err != nil {
		t.Fatalf("name match should authorize: %v", err)
	}
	if _, err := svc.Update(context.Background(), "b1", bookingReq("A101", "2025-11-02", "15:00", "16:00"), "u-chen"); !errors.Is(err, rules.ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
}

func TestBookingService_Update_KeepsOwner(t *testing.T) {
	svc, env := setupTestBookingService(nil)
	seedBooking(env, "b1", "A101", "2025-11-02", "09:00", "10:00", "u-rao", "Dr. Rao")
	env.users.users["u-rao"].Name = "Prof. Rao"

	resp, err := svc.Update(context.Background(), "b1", bookingReq("A101", "2025-11-02", "09:00", "11:00"), "u-rao")
	if err != nil {
		t.Fatalf("owner id should still authorize after rename: %v", err)
	}
	if resp.OwnerName != "Dr. Rao" {
		t.Errorf("owner name is captured at creation, got %q", resp.OwnerName)
	}
}

func TestBookingService_Update_NotFound(t *testing.T) {
	svc, _ := setupTestBookingService(nil)
	_, err := svc.Update(context.Background(), "missing", bookingReq("A101", "2025-11-02", "09:00", "10:00"), "u-rao")
	if !errors.Is(err, ErrBookingNotFound) {
		t.Fatalf("expected ErrBookingNotFound, got %v", err)
	}
}

// ── Delete ──

func TestBookingService_Delete(t *testing.T) {
	svc, env := setupTestBookingService(nil)
	seedBooking(env, "b1", "A101", "2025-11-02", "09:00", "10:00", "u-rao", "Dr. Rao")

	if err := svc.Delete(context.Background(), "b1", "u-chen"); !errors.Is(err, rules.ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if err := svc.Delete(context.Background(), "b1", "u-rao"); err != nil {
		t.Fatalf("owner delete should succeed: %v", err)
	}
	if _, ok := env.bookings.bookings["b1"]; ok {
		t.Error("booking should be gone")
	}
	if err := svc.Delete(context.Background(), "b1", "u-rao"); !errors.Is(err, ErrBookingNotFound) {
		t.Fatalf("expected ErrBookingNotFound, got %v", err)
	}
}

// ── Check ──

func TestBookingService_Check(t *testing.T) {
	svc, env := setupTestBookingService(nil)
	seedBooking(env, "b1", "A101", "2025-11-02", "09:00", "10:00", "u-chen", "Dr. Chen")
	ctx := context.Background()

	res, err := svc.Check(ctx, bookingReq("A101", "2025-11-02", "09:30", "10:30"), "", "u-rao")
	if err != nil {
		t.Fatalf("Check should not fail: %v", err)
	}
	if res.Available || !strings.Contains(res.Reason, "A101") {
		t.Errorf("expected unavailable with hall in reason, got %+v", res)
	}

	res, err = svc.Check(ctx, bookingReq("A101", "2025-11-02", "09:30", "10:30"), "b1", "u-rao")
	if err != nil || !res.Available {
		t.Errorf("excluding b1 should be available, got %+v, %v", res, err)
	}

	res, err = svc.Check(ctx, bookingReq("A101", "2025-11-02", "11:00", "10:00"), "", "u-rao")
	if err != nil || res.Available {
		t.Errorf("reversed range should be unavailable, got %+v, %v", res, err)
	}

	if len(env.bookings.bookings) != 1 {
		t.Error("Check must not write")
	}
}

// ── List / Halls ──

func TestBookingService_ListAndHalls(t *testing.T) {
	svc, env := setupTestBookingService(nil)
	seedBooking(env, "b2", "A101", "2025-11-03", "08:00", "09:00", "u-rao", "Dr. Rao")
	seedBooking(env, "b1", "A101", "2025-11-02", "13:00", "14:00", "u-rao", "Dr. Rao")
	seedBooking(env, "b3", "B202", "2025-11-02", "08:00", "09:00", "u-rao", "Dr. Rao")

	list, err := svc.List(context.Background(), &dto.ListBookingsRequest{Hall: "a101"})
	if err != nil {
		t.Fatalf("List should succeed: %v", err)
	}
	if len(list) != 2 || list[0].ID != "b1" || list[1].ID != "b2" {
		t.Errorf("expected [b1 b2] ordered by date, got %+v", list)
	}

	if _, err := svc.List(context.Background(), &dto.ListBookingsRequest{Hall: "nowhere"}); !errors.Is(err, ErrUnknownHall) {
		t.Errorf("expected ErrUnknownHall, got %v", err)
	}

	halls := svc.Halls()
	if len(halls) != 3 || halls[2].Name != "Main Auditorium" {
		t.Errorf("unexpected halls %+v", halls)
	}
}

func TestBookingService_PublishFailureDoesNotFailWrite(t *testing.T) {
	svc, env := setupTestBookingService(nil)
	env.publisher.err = errors.New("broker down")

	if _, err := svc.Create(context.Background(), bookingReq("A101", "2025-11-02", "09:00", "10:00"), "u-rao"); err != nil {
		t.Fatalf("Create should succeed despite broker failure: %v", err)
	}
}
