package e2e

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kilianp07/bustrack/app"
	"github.com/kilianp07/bustrack/config"
	"github.com/kilianp07/bustrack/core/factory"
	"github.com/kilianp07/bustrack/core/publish"
	"github.com/kilianp07/bustrack/core/store"
	"github.com/kilianp07/bustrack/simulator"
)

const (
	influxOrg    = "e2e_org"
	influxBucket = "e2e_bucket"
	influxToken  = "e2e-token"
)

// junitReport is a minimal representation of a JUnit XML report so CI
// systems can display the results.
type junitReport struct {
	XMLName  xml.Name        `xml:"testsuite"`
	Name     string          `xml:"name,attr"`
	Tests    int             `xml:"tests,attr"`
	Failures int             `xml:"failures,attr"`
	Cases    []junitTestCase `xml:"testcase"`
}

type junitTestCase struct {
	Name    string  `xml:"name,attr"`
	Failure *string `xml:"failure,omitempty"`
	Time    float64 `xml:"time,attr"`
}

// writeJUnit writes the provided report to the given path.
func writeJUnit(path string, rep junitReport) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := xml.NewEncoder(f)
	enc.Indent("", "  ")
	return enc.Encode(rep)
}

// startFeed serves a simulated fleet whose buses left half an hour ago.
func startFeed(t *testing.T) *httptest.Server {
	t.Helper()
	fleet, err := simulator.NewFleet(simulator.DefaultConfig(), time.Now().Add(-30*time.Minute))
	require.NoError(t, err)
	srv := httptest.NewServer(simulator.NewServer(fleet, time.UTC, nil).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func serviceConfig(t *testing.T, feedURL string) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Feed.BaseURL = feedURL
	cfg.Feed.TimeZone = "UTC"
	cfg.Feed.RadiusM = 50000
	cfg.Collector.Interval = time.Second
	cfg.Store.Driver = "memory"
	cfg.HTTP.Addr = "127.0.0.1:0"
	cfg.PredictionLog.Path = filepath.Join(t.TempDir(), "predictions.jsonl")
	cfg.Watches = []config.WatchConfig{{Name: "park", Line: "2A", Towards: 751421800, Lat: 56.1497, Lon: 10.2134}}
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	return cfg
}

// runService starts svc and returns a stop function waiting for Run.
func runService(t *testing.T, svc *app.Service) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := svc.Run(ctx); err != nil {
			t.Errorf("run: %v", err)
		}
	}()
	return func() {
		cancel()
		wg.Wait()
	}
}

func TestE2ESimulatedFeed(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping end-to-end test in short mode")
	}
	feedSrv := startFeed(t)
	svc, err := app.New(context.Background(), serviceConfig(t, feedSrv.URL), app.ModeServe)
	require.NoError(t, err)
	defer svc.Close()

	stop := runService(t, svc)
	require.Eventually(t, func() bool {
		_, ok := svc.Watcher.Latest("park")
		return ok
	}, 10*time.Second, 100*time.Millisecond)
	stop()

	keys, err := svc.Store.(store.KeyLister).RawKeys(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, keys)
	for _, k := range keys {
		_, err := store.ParseKey(k)
		require.NoError(t, err)
	}
	u, _ := svc.Watcher.Latest("park")
	require.Equal(t, "2A", u.Line)
	require.NotEmpty(t, u.PollID)
}

func startContainer(ctx context.Context, t *testing.T, req tc.ContainerRequest, port string) (tc.Container, string) {
	t.Helper()
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("unable to start %s: %v", req.Image, err)
	}
	host, _ := cont.Host(ctx)
	mapped, _ := cont.MappedPort(ctx, nat.Port(port))
	return cont, fmt.Sprintf("%s:%s", host, mapped.Port())
}

// Test_E2E_Brokers runs the service against InfluxDB and Mosquitto
// containers and checks that poll events and prediction updates arrive.
func Test_E2E_Brokers(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skipf("docker not installed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	start := time.Now()

	influxCont, influxAddr := startContainer(ctx, t, tc.ContainerRequest{
		Image:        "influxdb:2.7",
		ExposedPorts: []string{"8086/tcp"},
		Env: map[string]string{
			"DOCKER_INFLUXDB_INIT_MODE":        "setup",
			"DOCKER_INFLUXDB_INIT_USERNAME":    "e2e",
			"DOCKER_INFLUXDB_INIT_PASSWORD":    "e2e-password",
			"DOCKER_INFLUXDB_INIT_ORG":         influxOrg,
			"DOCKER_INFLUXDB_INIT_BUCKET":      influxBucket,
			"DOCKER_INFLUXDB_INIT_ADMIN_TOKEN": influxToken,
		},
		WaitingFor: wait.ForHTTP("/health").WithPort("8086/tcp").WithStartupTimeout(60 * time.Second),
	}, "8086")
	defer influxCont.Terminate(ctx) //nolint:errcheck
	mqttCont, mqttAddr := startContainer(ctx, t, tc.ContainerRequest{
		Image:        "eclipse-mosquitto:2.0",
		ExposedPorts: []string{"1883/tcp"},
		Cmd:          []string{"mosquitto", "-c", "/mosquitto-no-auth.conf"},
		WaitingFor:   wait.ForListeningPort("1883/tcp"),
	}, "1883")
	defer mqttCont.Terminate(ctx) //nolint:errcheck
	influxURL := "http://" + influxAddr
	brokerURL := "tcp://" + mqttAddr

	updates := make(chan publish.Update, 16)
	sub := paho.NewClient(paho.NewClientOptions().AddBroker(brokerURL).SetClientID("e2e-sub"))
	tok := sub.Connect()
	require.True(t, tok.WaitTimeout(10*time.Second))
	require.NoError(t, tok.Error())
	defer sub.Disconnect(100)
	tok = sub.Subscribe("bustrack/#", 1, func(_ paho.Client, m paho.Message) {
		var u publish.Update
		if json.Unmarshal(m.Payload(), &u) == nil && u.Watch != "" {
			updates <- u
		}
	})
	require.True(t, tok.WaitTimeout(10*time.Second))
	require.NoError(t, tok.Error())

	feedSrv := startFeed(t)
	cfg := serviceConfig(t, feedSrv.URL)
	cfg.Metrics.Sinks = []factory.ModuleConfig{{Type: "influx", Conf: map[string]any{
		"url": influxURL, "token": influxToken, "org": influxOrg, "bucket": influxBucket,
	}}}
	cfg.Publishers = []factory.ModuleConfig{{Type: "mqtt", Conf: map[string]any{
		"broker": brokerURL, "topic_prefix": "bustrack", "status_topic": "bustrack/status",
	}}}
	svc, err := app.New(ctx, cfg, app.ModeServe)
	require.NoError(t, err)
	defer svc.Close()
	stop := runService(t, svc)

	select {
	case u := <-updates:
		require.Equal(t, "park", u.Watch)
	case <-time.After(30 * time.Second):
		t.Fatal("no prediction update received over MQTT")
	}
	stop()

	cli := NewInfluxClient(influxURL, influxOrg, influxBucket, influxToken)
	defer cli.Close()
	n, err := cli.CountPoints(ctx, "poll_event")
	require.NoError(t, err)
	require.Positive(t, n)

	rep := junitReport{Name: "e2e", Tests: 1, Cases: []junitTestCase{{Name: "Test_E2E_Brokers", Time: time.Since(start).Seconds()}}}
	if err := writeJUnit(filepath.Join(t.TempDir(), "e2e.xml"), rep); err != nil {
		t.Logf("write junit: %v", err)
	}
}
