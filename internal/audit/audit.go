package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"returnsdash/internal/repository"
)

// Record is one adjudication event: a status change, a refund, or an
// incoming request worth tracing.
type Record struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	ReturnID  int64     `json:"return_id,omitempty"`
	OldStatus string    `json:"old_status,omitempty"`
	NewStatus string    `json:"new_status,omitempty"`
	Endpoint  string    `json:"endpoint,omitempty"`
	Request   string    `json:"request,omitempty"`
	Message   string    `json:"message"`
}

func NewRecord() Record {
	return Record{ID: uuid.NewString(), Timestamp: time.Now().UTC()}
}

type PoolConfig struct {
	BatchSize   int
	Timeout     time.Duration
	ChannelSize int
}

type Processor interface {
	Process(batch []Record) error
}

// DBProcessor persists audit batches to the audit_logs table in a single
// multi-row insert.
type DBProcessor struct {
	db *sql.DB
}

func NewDBProcessor(db *sql.DB) *DBProcessor {
	return &DBProcessor{db: db}
}

func (p *DBProcessor) Process(batch []Record) error {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO audit_logs (id, timestamp, return_id, old_status, new_status, endpoint, request, message) VALUES `)

	params := make([]interface{}, 0, len(batch)*8)
	paramIndex := 1
	for i, rec := range batch {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d)",
			paramIndex, paramIndex+1, paramIndex+2, paramIndex+3, paramIndex+4, paramIndex+5, paramIndex+6, paramIndex+7))
		paramIndex += 8
		params = append(params, rec.ID, rec.Timestamp, rec.ReturnID, rec.OldStatus, rec.NewStatus, rec.Endpoint, rec.Request, rec.Message)
	}
	if _, err := p.db.Exec(sb.String(), params...); err != nil {
		return fmt.Errorf("audit db insert: %w", err)
	}
	return nil
}

// StdoutProcessor writes batches to stdout, optionally keeping only records
// whose message contains the filter word.
type StdoutProcessor struct {
	Filter string
}

func (p *StdoutProcessor) Process(batch []Record) error {
	for _, rec := range batch {
		if p.Filter != "" &&
			!strings.Contains(strings.ToLower(rec.Message), strings.ToLower(p.Filter)) {
			continue
		}
		fmt.Printf("AUDIT: %s | Return: %d | %s -> %s | Msg: %s\n",
			rec.Timestamp.Format(time.RFC3339), rec.ReturnID, rec.OldStatus, rec.NewStatus, rec.Message)
	}
	return nil
}

// OutboxProcessor stages records in the audit_tasks outbox; a separate
// task processor publishes them to Kafka with retries.
type OutboxProcessor struct {
	repo repository.TaskRepository
}

func NewOutboxProcessor(repo repository.TaskRepository) *OutboxProcessor {
	return &OutboxProcessor{repo: repo}
}

func (p *OutboxProcessor) Process(batch []Record) error {
	for _, rec := range batch {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal audit record %s: %w", rec.ID, err)
		}
		if err := p.repo.CreateTask(context.Background(), data); err != nil {
			return fmt.Errorf("stage audit task: %w", err)
		}
	}
	return nil
}

// Pool batches records and hands full or stale batches to every processor.
type Pool struct {
	inputCh    chan Record
	processors []Processor
	batchSize  int
	timeout    time.Duration

	wg sync.WaitGroup
}

func NewPool(cfg PoolConfig, processors ...Processor) *Pool {
	return &Pool{
		inputCh:    make(chan Record, cfg.ChannelSize),
		processors: processors,
		batchSize:  cfg.BatchSize,
		timeout:    cfg.Timeout,
	}
}

func (p *Pool) Start(ctx context.Context, numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.worker(ctx)
		}()
	}
}

func (p *Pool) worker(ctx context.Context) {
	var batch []Record
	timer := time.NewTimer(p.timeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			if len(batch) > 0 {
				p.processBatch(batch)
			}
			return
		case rec := <-p.inputCh:
			batch = append(batch, rec)
			if len(batch) >= p.batchSize {
				if !timer.Stop() {
					<-timer.C
				}
				p.processBatch(batch)
				batch = nil
				timer.Reset(p.timeout)
			}
		case <-timer.C:
			if len(batch) > 0 {
				p.processBatch(batch)
				batch = nil
			}
			timer.Reset(p.timeout)
		}
	}
}

func (p *Pool) processBatch(batch []Record) {
	for _, proc := range p.processors {
		if err := proc.Process(batch); err != nil {
			log.Printf("Error processing audit batch: %v", err)
		}
	}
}

// Log enqueues a record without blocking; when the channel is full the
// record is dropped rather than stalling a request.
func (p *Pool) Log(record Record) {
	select {
	case p.inputCh <- record:
	default:
		log.Println("Audit log channel full, dropping record")
	}
}

func (p *Pool) Shutdown(cancel context.CancelFunc) {
	cancel()
	p.wg.Wait()
}
