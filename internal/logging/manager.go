package logging

import (
	"fmt"
	"sort"
	"sync"
)

// LoggerManager управляет логгерами отдельных компонентов
type LoggerManager struct {
	mu      sync.RWMutex
	root    *Logger
	loggers map[string]*Logger
}

// NewLoggerManager создаёт менеджер поверх корневого логгера.
func NewLoggerManager(root *Logger) *LoggerManager {
	return &LoggerManager{
		root:    root,
		loggers: make(map[string]*Logger),
	}
}

// Get возвращает логгер для компонента, создавая его при необходимости
func (lm *LoggerManager) Get(component string) *Logger {
	lm.mu.RLock()
	if logger, exists := lm.loggers[component]; exists {
		lm.mu.RUnlock()
		return logger
	}
	lm.mu.RUnlock()

	lm.mu.Lock()
	defer lm.mu.Unlock()

	// Проверяем еще раз на случай гонки
	if logger, exists := lm.loggers[component]; exists {
		return logger
	}

	logger := lm.root.Named(component)
	lm.loggers[component] = logger
	return logger
}

// ListComponents возвращает отсортированный список компонентов
func (lm *LoggerManager) ListComponents() []string {
	lm.mu.RLock()
	defer lm.mu.RUnlock()

	components := make([]string, 0, len(lm.loggers))
	for component := range lm.loggers {
		components = append(components, component)
	}
	sort.Strings(components)
	return components
}

// SetLogLevel устанавливает уровень логирования.
// Уровень разделяется всеми логгерами менеджера.
func (lm *LoggerManager) SetLogLevel(component string, level LogLevel) error {
	lm.mu.RLock()
	logger, exists := lm.loggers[component]
	lm.mu.RUnlock()

	if !exists {
		return fmt.Errorf("logger for component %s not found", component)
	}

	logger.SetLevel(level)
	return nil
}

// SyncAll сбрасывает буферы всех логгеров
func (lm *LoggerManager) SyncAll() error {
	lm.mu.RLock()
	defer lm.mu.RUnlock()

	var lastErr error
	for component, logger := range lm.loggers {
		if err := logger.Sync(); err != nil {
			lastErr = fmt.Errorf("failed to sync logger for %s: %w", component, err)
		}
	}
	return lastErr
}

// Имена компонентов
const (
	ComponentRegistry = "registry"
	ComponentDispatch = "dispatch"
	ComponentWorld    = "world"
	ComponentStorage  = "storage"
	ComponentCache    = "cache"
	ComponentAPI      = "api"
)
