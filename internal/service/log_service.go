package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"abroadPlan/internal/config"
	"abroadPlan/internal/fetch"
	"abroadPlan/internal/model"
	"abroadPlan/internal/storage"
	"abroadPlan/internal/util"

	"github.com/rs/zerolog/log"
)

// LogService 上游调用日志服务
//
// 职责：
// - 作为 fetch.Observer 接收每次上游尝试
// - 异步批量写入（队列满时丢弃并计数）
// - 定时清理过期日志
// - 优雅关闭时刷盘
type LogService struct {
	store storage.LogStore

	logChan      chan *model.ProviderLog
	logWorkers   int
	logDropCount atomic.Uint64

	retention time.Duration

	shutdownCh     chan struct{}
	isShuttingDown *atomic.Bool
	wg             *sync.WaitGroup
}

// NewLogService 创建日志服务实例
func NewLogService(
	store storage.LogStore,
	logBufferSize int,
	logWorkers int,
	retentionDays int,
	shutdownCh chan struct{},
	isShuttingDown *atomic.Bool,
	wg *sync.WaitGroup,
) *LogService {
	if logBufferSize <= 0 {
		logBufferSize = config.DefaultLogBufferSize
	}
	if logWorkers <= 0 {
		logWorkers = config.DefaultLogWorkers
	}
	if retentionDays <= 0 {
		retentionDays = config.DefaultLogRetentionDays
	}
	return &LogService{
		store:          store,
		logChan:        make(chan *model.ProviderLog, logBufferSize),
		logWorkers:     logWorkers,
		retention:      time.Duration(retentionDays) * 24 * time.Hour,
		shutdownCh:     shutdownCh,
		isShuttingDown: isShuttingDown,
		wg:             wg,
	}
}

// StartWorkers 启动日志 Worker
func (s *LogService) StartWorkers() {
	for i := 0; i < s.logWorkers; i++ {
		s.wg.Add(1)
		go s.logWorker()
	}
}

// logWorker 批量处理日志；收到关闭信号时取走队列剩余日志并刷盘退出
func (s *LogService) logWorker() {
	defer s.wg.Done()

	batch := make([]*model.ProviderLog, 0, config.LogBatchSize)
	ticker := time.NewTicker(config.LogBatchTimeout)
	defer ticker.Stop()

	for {
		select {
		case <-s.shutdownCh:
			batch = s.drain(batch)
			s.flushIfNeeded(batch)
			return

		case entry, ok := <-s.logChan:
			if !ok {
				s.flushIfNeeded(batch)
				return
			}
			batch = append(batch, entry)
			if len(batch) >= config.LogBatchSize {
				s.flushLogs(batch)
				batch = batch[:0]
				ticker.Reset(config.LogBatchTimeout)
			}

		case <-ticker.C:
			s.flushIfNeeded(batch)
			batch = batch[:0]
		}
	}
}

// drain 关闭时取走队列中已有的日志（不阻塞）
func (s *LogService) drain(batch []*model.ProviderLog) []*model.ProviderLog {
	for {
		select {
		case entry, ok := <-s.logChan:
			if !ok {
				return batch
			}
			batch = append(batch, entry)
		default:
			return batch
		}
	}
}

func (s *LogService) flushLogs(logs []*model.ProviderLog) {
	ctx, cancel := context.WithTimeout(context.Background(), config.LogFlushTimeout)
	defer cancel()

	if err := s.store.BatchAddProviderLogs(ctx, logs); err != nil {
		log.Warn().Err(err).Int("count", len(logs)).Msg("[WARN] 上游日志写入失败")
	}
}

func (s *LogService) flushIfNeeded(batch []*model.ProviderLog) {
	if len(batch) > 0 {
		s.flushLogs(batch)
	}
}

// AddLogAsync 异步添加日志，队列满时丢弃
func (s *LogService) AddLogAsync(entry *model.ProviderLog) {
	if s.isShuttingDown.Load() {
		return
	}

	select {
	case s.logChan <- entry:
	default:
		dropCount := s.logDropCount.Add(1)
		if dropCount%config.LogDropAlertThreshold == 0 {
			log.Warn().Uint64("dropped", dropCount).Msg("[WARN] 上游日志队列已满，日志被丢弃，请增大 ABROAD_LOG_BUFFER")
		}
	}
}

// DroppedCount 累计丢弃条数
func (s *LogService) DroppedCount() uint64 {
	return s.logDropCount.Load()
}

// Observe 实现 fetch.Observer：把一次尝试转为日志记录
func (s *LogService) Observe(a fetch.Attempt) {
	s.AddLogAsync(&model.ProviderLog{
		Time:       model.JSONTime{Time: time.Now()},
		Provider:   a.Provider,
		Endpoint:   a.Endpoint,
		KeyMask:    a.KeyMask,
		StatusCode: a.Outcome.Status,
		Outcome:    a.Outcome.Kind.String(),
		Attempt:    a.Number,
		Duration:   a.Duration.Seconds(),
		Message:    util.TruncateRunes(util.SanitizeLogMessage(a.Message), config.LogMaxMessageLength),
	})
}

// StartCleanupLoop 启动日志清理后台协程
func (s *LogService) StartCleanupLoop() {
	s.wg.Add(1)
	go s.cleanupOldLogsLoop()
}

func (s *LogService) cleanupOldLogsLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(config.LogCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanupOnce()
		case <-s.shutdownCh:
			return
		}
	}
}

func (s *LogService) cleanupOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().Add(-s.retention)
	if err := s.store.CleanupProviderLogsBefore(ctx, cutoff); err != nil {
		log.Warn().Err(err).Msg("[WARN] 清理上游日志失败")
	}
}
