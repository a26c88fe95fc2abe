package block

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/annel0/blockbase/internal/logging"
	"github.com/getsentry/sentry-go"
)

// Причины деградации к поведению по умолчанию
const (
	FailureInstantiation = "instantiation"
	FailureUnregistered  = "unregistered"
	FailurePanic         = "panic"
)

type failureKey struct {
	reason  string
	variant VariantID
}

// failureLog пишет ошибки горячего пути не чаще раза за окно
// для пары (причина, вариант). Окно <= 0 - один раз за жизнь процесса.
type failureLog struct {
	mu     sync.Mutex
	window time.Duration
	seen   map[failureKey]time.Time
	logger *logging.Logger
	now    func() time.Time
}

func newFailureLog(logger *logging.Logger, window time.Duration) *failureLog {
	return &failureLog{
		window: window,
		seen:   make(map[failureKey]time.Time),
		logger: logger,
		now:    time.Now,
	}
}

// report возвращает true, если запись попала в лог.
func (f *failureLog) report(reason string, s Site, err error) bool {
	key := failureKey{reason: reason, variant: s.Variant}

	f.mu.Lock()
	last, seen := f.seen[key]
	now := f.now()
	if seen && (f.window <= 0 || now.Sub(last) < f.window) {
		f.mu.Unlock()
		return false
	}
	f.seen[key] = now
	f.mu.Unlock()

	switch reason {
	case FailureUnregistered:
		f.logger.Warn("вариант %d в позиции %v не зарегистрирован, используется поведение по умолчанию",
			s.Variant, s.Pos)
	default:
		f.logger.Error("вариант %d в позиции %v: %v, используется поведение по умолчанию",
			s.Variant, s.Pos, err)
		capture(reason, s, err)
	}
	return true
}

// reset очищает окно дедупликации.
func (f *failureLog) reset() {
	f.mu.Lock()
	f.seen = make(map[failureKey]time.Time)
	f.mu.Unlock()
}

// capture отправляет ошибку в Sentry. Без sentry.Init клиент пуст и вызов ничего не делает.
func capture(reason string, s Site, err error) {
	if err == nil {
		err = fmt.Errorf("%s failure", reason)
	}
	hub := sentry.CurrentHub().Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("reason", reason)
		scope.SetTag("variant", strconv.Itoa(int(s.Variant)))
		scope.SetExtra("pos", fmt.Sprint(s.Pos))
	})
	hub.CaptureException(err)
}
