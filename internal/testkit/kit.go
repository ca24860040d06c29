package testkit

import (
	"net/http/httptest"

	"dataexplorer/internal"
	"dataexplorer/internal/metrics"
)

// TestKit runs the reference service on a loopback listener for tests
type TestKit struct {
	Server   *Server
	HTTP     *httptest.Server
	Recorder *metrics.Recorder
}

// NewTestKit starts a reference service storing its files under dataDir
func NewTestKit(dataDir string) (*TestKit, error) {
	recorder := metrics.NewRecorder("devserver")
	server, err := NewServer(ServerOptions{
		DataDir:  dataDir,
		Logger:   internal.Discard(),
		Recorder: recorder,
	})
	if err != nil {
		return nil, err
	}
	return &TestKit{
		Server:   server,
		HTTP:     httptest.NewServer(server.Handler()),
		Recorder: recorder,
	}, nil
}

// URL is the base URL of the running service
func (k *TestKit) URL() string {
	return k.HTTP.URL
}

// Close stops the listener
func (k *TestKit) Close() {
	k.HTTP.Close()
}

// SimpleCSV is the smallest useful upload
func SimpleCSV() []byte {
	return []byte("a,b\n1,2\n3,4\n")
}

// ShoppingCSV generates a deterministic order table without blank cells
func ShoppingCSV(orders int, seed int64) []byte {
	cfg := DefaultShoppingConfig()
	cfg.OrderCount = orders
	cfg.Seed = seed
	cfg.MissingRate = 0
	data, err := NewShoppingDataGenerator(cfg).GenerateCSV()
	if err != nil {
		panic(err)
	}
	return data
}
