// Package lokisink is a log/slog sink that ships records to a Grafana Loki
// push endpoint. Records are enriched with an ambient property store,
// batched in memory, and POSTed as the Loki streaming JSON format.
//
// Quick start:
//
//	s, err := lokisink.New("http://localhost:3100/loki/api/v1/push",
//	    lokisink.WithLabels(map[string]string{"app": "example", "env": "stage"}),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close()
//	s.Install()
//
//	g, _ := s.Push("CorrelationId", 12345)
//	defer g.Release()
//	slog.Info("order placed", "order_id", 991)
//
// Every emitted line is a JSON object holding the ambient properties live at
// log time plus the standard Message, LineNumber, Target, File, and level
// properties. Delivery is lossy: a failed send drops the batch rather than
// blocking producers.
package lokisink
