package standalone_storage

import (
	"os"
	"strconv"
	"sync"

	"github.com/coocood/badger"
	"github.com/pingcap-incubator/tinyrdf/kv/config"
	"github.com/pingcap-incubator/tinyrdf/kv/storage"
	"github.com/pingcap-incubator/tinyrdf/kv/util/engine_util"
	"github.com/pingcap-incubator/tinyrdf/kv/util/worker"
	"github.com/pingcap-incubator/tinyrdf/log"
	"github.com/pingcap/errors"
)

// StandAloneStorage is an implementation of `Storage` on a single local badger DB.
type StandAloneStorage struct {
	conf config.Config
	db   *badger.DB

	wg          sync.WaitGroup
	sizeWorker  *worker.Worker
	sizeHandler *sizeHandler
}

func NewStandAloneStorage(conf *config.Config) *StandAloneStorage {
	return &StandAloneStorage{conf: *conf}
}

func (s *StandAloneStorage) Start() error {
	if err := os.MkdirAll(s.conf.DBPath, os.ModePerm); err != nil {
		return errors.WithStack(err)
	}
	opts := badger.DefaultOptions
	opts.Dir = s.conf.DBPath
	opts.ValueDir = s.conf.DBPath
	if s.conf.Badger.ValueThreshold > 0 {
		opts.ValueThreshold = s.conf.Badger.ValueThreshold
	}
	if s.conf.Badger.NumCompactors > 0 {
		opts.NumCompactors = s.conf.Badger.NumCompactors
	}
	opts.SyncWrites = s.conf.Badger.SyncWrites
	db, err := badger.Open(opts)
	if err != nil {
		return errors.Annotatef(err, "open badger at %s", s.conf.DBPath)
	}
	s.db = db
	log.Infof("badger storage opened at %s", s.conf.DBPath)

	if interval := s.conf.Badger.MetricsInterval.Duration; interval > 0 {
		s.sizeHandler = &sizeHandler{db: db}
		s.sizeWorker = worker.NewWorker("badger-size", &s.wg)
		s.sizeWorker.Start(s.sizeHandler)
		s.sizeWorker.Schedule(interval, func() worker.Task {
			return sizeTask{}
		})
	}
	return nil
}

func (s *StandAloneStorage) Stop() error {
	if s.db == nil {
		return nil
	}
	if s.sizeWorker != nil {
		s.sizeWorker.Stop()
		s.wg.Wait()
		s.sizeWorker = nil
	}
	err := s.db.Close()
	s.db = nil
	log.Infof("badger storage at %s closed", s.conf.DBPath)
	return errors.WithStack(err)
}

// DB exposes the underlying badger DB.
func (s *StandAloneStorage) DB() *badger.DB {
	return s.db
}

func (s *StandAloneStorage) Reader() (storage.StorageReader, error) {
	if s.db == nil {
		return nil, errors.New("standalone storage is not started")
	}
	return &badgerReader{txn: s.db.NewTransaction(false)}, nil
}

func (s *StandAloneStorage) Write(batch []storage.Modify) error {
	if s.db == nil {
		return errors.New("standalone storage is not started")
	}
	wb := new(engine_util.WriteBatch)
	for _, m := range batch {
		switch data := m.Data.(type) {
		case storage.Put:
			wb.SetCF(data.Cf, data.Key, data.Value)
		case storage.Delete:
			wb.DeleteCF(data.Cf, data.Key)
		}
	}
	return wb.WriteToDB(s.db)
}

// badgerReader reads from a read-only transaction, which sees the DB as it was when the reader was created.
type badgerReader struct {
	txn *badger.Txn
}

func (r *badgerReader) GetCF(cf string, key []byte) ([]byte, error) {
	val, err := engine_util.GetCFFromTxn(r.txn, cf, key)
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	return val, errors.WithStack(err)
}

func (r *badgerReader) IterCF(cf string) engine_util.DBIterator {
	return engine_util.NewCFIterator(cf, r.txn)
}

func (r *badgerReader) Close() {
	r.txn.Discard()
}

type sizeTask struct{}

type dbSize struct {
	lsm, vlog int64
	// Tables per LSM level.
	tables map[int]int
}

func sampleSize(db *badger.DB) dbSize {
	size := dbSize{tables: make(map[int]int)}
	size.lsm, size.vlog = db.Size()
	for _, t := range db.Tables() {
		size.tables[t.Level]++
	}
	return size
}

// sizeHandler samples the size of the DB into the badger gauges.
type sizeHandler struct {
	db *badger.DB

	mu   sync.Mutex
	last dbSize
}

func (h *sizeHandler) Handle(t worker.Task) {
	if _, ok := t.(sizeTask); !ok {
		log.Errorf("unexpected task %v", t)
		return
	}
	size := sampleSize(h.db)
	sizeGauge.WithLabelValues("lsm").Set(float64(size.lsm))
	sizeGauge.WithLabelValues("vlog").Set(float64(size.vlog))
	for level, n := range size.tables {
		tableGauge.WithLabelValues(strconv.Itoa(level)).Set(float64(n))
	}
	log.Debugf("badger size: lsm %d, vlog %d, tables %v", size.lsm, size.vlog, size.tables)
	h.mu.Lock()
	h.last = size
	h.mu.Unlock()
}

func (h *sizeHandler) lastSize() dbSize {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last
}
