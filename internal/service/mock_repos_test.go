package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"deptdesk/internal/model"
	"deptdesk/internal/repository"
	pkgerrors "deptdesk/pkg/errors"
	"deptdesk/pkg/redis"
)

// ── Mock UserRepository ──

type mockUserRepo struct {
	users map[string]*model.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) add(id, name, role string) *model.User {
	u := &model.User{UserID: id, Name: name, Email: id + "@uni.example", Role: role}
	m.users[id] = u
	return u
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	for _, u := range m.users {
		if strings.EqualFold(u.Email, user.Email) {
			return pkgerrors.ErrDuplicateKey
		}
	}
	if user.UserID == "" {
		user.UserID = fmt.Sprintf("user-%d", len(m.users)+1)
	}
	user.CreatedAt = time.Now()
	m.users[user.UserID] = user
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range m.users {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

// ── Mock ProfileRepository ──

type mockProfileRepo struct {
	users    *mockUserRepo
	profiles map[string]*model.LecturerProfile
	reads    int
}

func newMockProfileRepo(users *mockUserRepo) *mockProfileRepo {
	return &mockProfileRepo{users: users, profiles: make(map[string]*model.LecturerProfile)}
}

func (m *mockProfileRepo) GetWithUser(_ context.Context, userID string) (*model.User, error) {
	m.reads++
	u, ok := m.users.users[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *u
	cp.Profile = m.profiles[userID]
	return &cp, nil
}

func (m *mockProfileRepo) Save(_ context.Context, user *model.User, profile *model.LecturerProfile) error {
	u, ok := m.users.users[user.UserID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for id, other := range m.users.users {
		if id != user.UserID && strings.EqualFold(other.Email, user.Email) {
			return pkgerrors.ErrDuplicateKey
		}
	}
	u.Name = user.Name
	u.Email = user.Email
	profile.UserID = user.UserID
	profile.UpdatedAt = time.Now()
	m.profiles[user.UserID] = profile
	return nil
}

// ── Mock CourseRepository ──

type mockCourseRepo struct {
	courses map[string]*model.Course
	seq     int
}

func newMockCourseRepo() *mockCourseRepo {
	return &mockCourseRepo{courses: make(map[string]*model.Course)}
}

func (m *mockCourseRepo) Create(_ context.Context, course *model.Course) error {
	m.seq++
	if course.CourseID == "" {
		course.CourseID = fmt.Sprintf("course-%d", m.seq)
	}
	m.courses[course.CourseID] = course
	return nil
}

func (m *mockCourseRepo) GetByID(_ context.Context, id string) (*model.Course, error) {
	if c, ok := m.courses[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockCourseRepo) List(_ context.Context) ([]model.Course, error) {
	var result []model.Course
	for _, c := range m.courses {
		result = append(result, *c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CourseNumber < result[j].CourseNumber })
	return result, nil
}

func (m *mockCourseRepo) Update(_ context.Context, course *model.Course) error {
	if _, ok := m.courses[course.CourseID]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *course
	m.courses[course.CourseID] = &cp
	return nil
}

func (m *mockCourseRepo) Delete(_ context.Context, id string) error {
	delete(m.courses, id)
	return nil
}

// ── Mock BookingRepository ──

// mockBookingRepo 用互斥锁串行化带校验的写入，
// 模拟 advisory lock
type mockBookingRepo struct {
	mu       sync.Mutex
	bookings map[string]*model.HallBooking
	seq      int
	listErr  error
}

func newMockBookingRepo() *mockBookingRepo {
	return &mockBookingRepo{bookings: make(map[string]*model.HallBooking)}
}

func (m *mockBookingRepo) put(b model.HallBooking) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[b.BookingID] = &b
}

func (m *mockBookingRepo) GetByID(_ context.Context, id string) (*model.HallBooking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.bookings[id]; ok {
		cp := *b
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockBookingRepo) List(_ context.Context, f repository.BookingFilter) ([]model.HallBooking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var result []model.HallBooking
	for _, b := range m.bookings {
		if f.Hall != "" && b.Hall != f.Hall {
			continue
		}
		if f.Date != "" && b.Date != f.Date {
			continue
		}
		if f.DateFrom != "" && b.Date < f.DateFrom {
			continue
		}
		if f.DateTo != "" && b.Date > f.DateTo {
			continue
		}
		result = append(result, *b)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Date != result[j].Date {
			return result[i].Date < result[j].Date
		}
		return result[i].StartTime < result[j].StartTime
	})
	return result, nil
}

func (m *mockBookingRepo) listByHallDate(hall, date string) []model.HallBooking {
	var result []model.HallBooking
	for _, b := range m.bookings {
		if b.Hall == hall && b.Date == date {
			result = append(result, *b)
		}
	}
	return result
}

func (m *mockBookingRepo) ListByHallDate(_ context.Context, hall, date string) ([]model.HallBooking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listByHallDate(hall, date), nil
}

func (m *mockBookingRepo) CreateChecked(_ context.Context, booking *model.HallBooking, check repository.BookingCheck) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := check(m.listByHallDate(booking.Hall, booking.Date)); err != nil {
		return err
	}
	m.seq++
	booking.BookingID = fmt.Sprintf("booking-%d", m.seq)
	booking.CreatedAt = time.Now()
	booking.UpdatedAt = booking.CreatedAt
	cp := *booking
	m.bookings[booking.BookingID] = &cp
	return nil
}

func (m *mockBookingRepo) UpdateChecked(_ context.Context, booking *model.HallBooking, _, _ string, check repository.BookingCheck) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bookings[booking.BookingID]; !ok {
		return gorm.ErrRecordNotFound
	}
	if err := check(m.listByHallDate(booking.Hall, booking.Date)); err != nil {
		return err
	}
	cp := *booking
	m.bookings[booking.BookingID] = &cp
	return nil
}

func (m *mockBookingRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.bookings, id)
	return nil
}

// ── Mock EventRepository ──

type mockEventRepo struct {
	events map[string]*model.Event
	seq    int
}

func newMockEventRepo() *mockEventRepo {
	return &mockEventRepo{events: make(map[string]*model.Event)}
}

func (m *mockEventRepo) Create(_ context.Context, event *model.Event) error {
	m.seq++
	event.EventID = fmt.Sprintf("event-%d", m.seq)
	cp := *event
	m.events[event.EventID] = &cp
	return nil
}

func (m *mockEventRepo) GetByID(_ context.Context, id string) (*model.Event, error) {
	if e, ok := m.events[id]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockEventRepo) List(_ context.Context, query string, offset, limit int) ([]model.Event, int64, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	var matched []model.Event
	for _, e := range m.events {
		if q != "" &&
			!strings.Contains(strings.ToLower(e.Title), q) &&
			!strings.Contains(strings.ToLower(e.Location), q) &&
			!strings.Contains(strings.ToLower(e.Description), q) {
			continue
		}
		matched = append(matched, *e)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].StartsAt.Before(matched[j].StartsAt) })

	total := int64(len(matched))
	if offset >= len(matched) {
		return []model.Event{}, total, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

func (m *mockEventRepo) Update(_ context.Context, event *model.Event) error {
	if _, ok := m.events[event.EventID]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *event
	m.events[event.EventID] = &cp
	return nil
}

func (m *mockEventRepo) Delete(_ context.Context, id string) error {
	delete(m.events, id)
	return nil
}

// ── Mock Redis 依赖 ──

type mockBlacklist struct {
	revoked map[string]time.Duration
}

func newMockBlacklist() *mockBlacklist {
	return &mockBlacklist{revoked: make(map[string]time.Duration)}
}

func (m *mockBlacklist) BlacklistToken(_ context.Context, jti string, ttl time.Duration) error {
	m.revoked[jti] = ttl
	return nil
}

func (m *mockBlacklist) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	_, ok := m.revoked[jti]
	return ok, nil
}

type mockLocker struct {
	mu    sync.Mutex
	held  map[string]bool
	err   error
	calls []string
	// freeAfter[key] 被占用的 key 在拒绝若干次后释放
	freeAfter map[string]int
}

func newMockLocker() *mockLocker {
	return &mockLocker{held: make(map[string]bool), freeAfter: make(map[string]int)}
}

// AcquireLock 返回 nil 锁；nil *redis.Lock 的 Release 为空操作
func (m *mockLocker) AcquireLock(_ context.Context, key string, _ time.Duration) (*redis.Lock, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, key)
	if m.err != nil {
		return nil, false, m.err
	}
	if m.held[key] {
		if n, ok := m.freeAfter[key]; ok {
			if n <= 1 {
				delete(m.held, key)
				delete(m.freeAfter, key)
			} else {
				m.freeAfter[key] = n - 1
			}
		}
		return nil, false, nil
	}
	return nil, true, nil
}

type mockCache struct {
	data map[string][]byte
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string][]byte)}
}

func (m *mockCache) SetJSON(_ context.Context, key string, v interface{}, _ time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.data[key] = b
	return nil
}

func (m *mockCache) GetJSON(_ context.Context, key string, v interface{}) error {
	b, ok := m.data[key]
	if !ok {
		return redis.ErrCacheMiss
	}
	return json.Unmarshal(b, v)
}

func (m *mockCache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

type publishedEvent struct {
	key     string
	payload interface{}
}

type mockPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (m *mockPublisher) Publish(_ context.Context, routingKey string, payload interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, publishedEvent{key: routingKey, payload: payload})
	return m.err
}

func (m *mockPublisher) Close() error { return nil }

func (m *mockPublisher) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.events {
		out = append(out, e.key)
	}
	return out
}

// ── 共享测试数据 ──

type testEnv struct {
	repo      *repository.Repository
	users     *mockUserRepo
	profiles  *mockProfileRepo
	courses   *mockCourseRepo
	bookings  *mockBookingRepo
	events    *mockEventRepo
	publisher *mockPublisher
}

func newTestEnv() *testEnv {
	users := newMockUserRepo()
	env := &testEnv{
		users:     users,
		profiles:  newMockProfileRepo(users),
		courses:   newMockCourseRepo(),
		bookings:  newMockBookingRepo(),
		events:    newMockEventRepo(),
		publisher: &mockPublisher{},
	}
	env.repo = &repository.Repository{
		User:    env.users,
		Profile: env.profiles,
		Course:  env.courses,
		Booking: env.bookings,
		Event:   env.events,
	}
	users.add("u-rao", "Dr. Rao", model.RoleLecturer)
	users.add("u-chen", "Dr. Chen", model.RoleLecturer)
	users.add("u-admin", "Registrar", model.RoleAdmin)
	return env
}
