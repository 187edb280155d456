package metrics

type Counter interface {
	Inc()
}

type Metrics struct {
	CyclesRun           Counter
	CycleFailures       Counter
	SymbolsProcessed    Counter
	SymbolsFailed       Counter
	FetchErrors         Counter
	CacheHits           Counter
	CacheMisses         Counter
	BuySignals          Counter
	SellSignals         Counter
	NotificationsSent   Counter
	NotificationsFailed Counter
}

type noopCounter struct{}

func (noopCounter) Inc() {}

func NewNoop() *Metrics {
	n := noopCounter{}
	return &Metrics{
		CyclesRun:           n,
		CycleFailures:       n,
		SymbolsProcessed:    n,
		SymbolsFailed:       n,
		FetchErrors:         n,
		CacheHits:           n,
		CacheMisses:         n,
		BuySignals:          n,
		SellSignals:         n,
		NotificationsSent:   n,
		NotificationsFailed: n,
	}
}
