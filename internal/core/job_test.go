package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func collect(t *testing.T, j *Job) []Event {
	t.Helper()
	var events []Event
	timeout := time.After(10 * time.Second)
	for {
		select {
		case e, ok := <-j.Events():
			if !ok {
				return events
			}
			events = append(events, e)
		case <-timeout:
			t.Fatal("timed out waiting for job events")
		}
	}
}

func checkOrdering(t *testing.T, events []Event) {
	t.Helper()
	last := 0
	for i, e := range events {
		if e.Percent < last {
			t.Errorf("event %d percent %d went backwards from %d", i, e.Percent, last)
		}
		last = e.Percent
		if e.Seq != i+1 {
			t.Errorf("event %d has seq %d", i, e.Seq)
		}
		if i < len(events)-1 && e.Terminal() {
			t.Errorf("terminal event at %d of %d", i, len(events))
		}
		if e.Kind == EventProgress && e.Percent > 99 {
			t.Errorf("progress event reports %d%%", e.Percent)
		}
	}
}

func TestRunner_SyncCSV(t *testing.T) {
	r := NewRunner(RunnerConfig{}, nil)
	j, err := r.Start(context.Background(), StartMessage{
		FileName: "people.csv",
		Kind:     KindDelimited,
		Payload:  []byte("Name;Age\nAna;30\n\"Lee, A\";28\n"),
	})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !j.Sync {
		t.Error("small payload should parse synchronously")
	}
	if j.State() != JobCompleted {
		t.Errorf("State() = %s, want completed before Start returns", j.State())
	}

	events := collect(t, j)
	checkOrdering(t, events)
	if len(events) < 3 {
		t.Fatalf("got %d events, want progress then complete", len(events))
	}
	if events[0].Percent != 10 || events[1].Percent != 20 {
		t.Errorf("first percents = %d, %d; want 10, 20", events[0].Percent, events[1].Percent)
	}

	final := events[len(events)-1]
	if final.Kind != EventComplete || final.Percent != 100 {
		t.Fatalf("final event = %+v, want complete at 100", final)
	}
	if len(final.SheetNames) != 1 || final.SheetNames[0] != CSVSheetName {
		t.Errorf("SheetNames = %v", final.SheetNames)
	}

	res, err := j.Result()
	if err != nil {
		t.Fatal(err)
	}
	if res.Delimiter != ';' {
		t.Errorf("Delimiter = %q, want ';'", res.Delimiter)
	}
	if got := res.Sheets[0].Row(2).At(0); !got.Equal(Text("Lee, A")) {
		t.Errorf("row 2 name = %v", got)
	}
}

func TestRunner_AsyncCSV(t *testing.T) {
	r := NewRunner(RunnerConfig{SyncThreshold: 1}, nil)

	var b strings.Builder
	b.WriteString("id,value\n")
	for i := 0; i < 3000; i++ {
		b.WriteString("1,two\n")
	}

	j, err := r.Start(context.Background(), StartMessage{FileName: "big.csv", Kind: KindDelimited, Payload: []byte(b.String())})
	if err != nil {
		t.Fatal(err)
	}
	if j.Sync {
		t.Fatal("payload above threshold should run in a worker")
	}

	events := collect(t, j)
	checkOrdering(t, events)
	if final := events[len(events)-1]; final.Kind != EventComplete {
		t.Fatalf("final event = %+v", final)
	}
	var rowEvents int
	for _, e := range events {
		if strings.HasPrefix(e.Message, "Parsed ") && e.Kind == EventProgress {
			rowEvents++
		}
	}
	if rowEvents != 3 {
		t.Errorf("row progress events = %d, want 3 (every 1000 rows)", rowEvents)
	}

	res, err := j.Wait(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Sheets[0].RowCount() != 3001 {
		t.Errorf("RowCount() = %d, want 3001", res.Sheets[0].RowCount())
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.Limiter().WaitForDrain(ctx); err != nil {
		t.Errorf("worker slot not released: %v", err)
	}
}

func TestRunner_ExplicitDelimiter(t *testing.T) {
	r := NewRunner(RunnerConfig{}, nil)
	j, err := r.Start(context.Background(), StartMessage{
		FileName:  "a.tsv",
		Kind:      KindDelimited,
		Payload:   []byte("a,b\tc\n1,2\t3\n"),
		Delimiter: '\t',
	})
	if err != nil {
		t.Fatal(err)
	}
	res, err := j.Result()
	if err != nil {
		t.Fatal(err)
	}
	if got := res.Sheets[0].Row(0).At(0); !got.Equal(Text("a,b")) {
		t.Errorf("first field = %v, want a,b", got)
	}
}

func TestRunner_Errors(t *testing.T) {
	tests := []struct {
		name     string
		msg      StartMessage
		wantCode string
	}{
		{
			name:     "blank text",
			msg:      StartMessage{FileName: "blank.csv", Kind: KindDelimited, Payload: []byte(" \n \n")},
			wantCode: "FILE003",
		},
		{
			name:     "corrupt workbook",
			msg:      StartMessage{FileName: "bad.xlsx", Kind: KindWorkbook, Payload: []byte("garbage")},
			wantCode: "PARSE001",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRunner(RunnerConfig{}, nil)
			j, err := r.Start(context.Background(), tt.msg)
			if err != nil {
				t.Fatal(err)
			}
			events := collect(t, j)
			checkOrdering(t, events)

			final := events[len(events)-1]
			if final.Kind != EventError || final.Error == "" {
				t.Fatalf("final event = %+v, want error", final)
			}
			if j.State() != JobFailed {
				t.Errorf("State() = %s, want failed", j.State())
			}
			_, err = j.Result()
			if code := MapError(err).Code; code != tt.wantCode {
				t.Errorf("error %v maps to %s, want %s", err, code, tt.wantCode)
			}
		})
	}
}

func TestRunner_Workbook(t *testing.T) {
	r := NewRunner(RunnerConfig{SyncThreshold: 1}, nil)
	j, err := r.Start(context.Background(), StartMessage{FileName: "book.xlsx", Kind: KindWorkbook, Payload: buildWorkbook(t)})
	if err != nil {
		t.Fatal(err)
	}

	events := collect(t, j)
	checkOrdering(t, events)
	want := []int{10, 50, 70, 90, 100}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d", len(events), len(want))
	}
	for i, e := range events {
		if e.Percent != want[i] {
			t.Errorf("event %d percent = %d, want %d", i, e.Percent, want[i])
		}
	}
	if names := events[len(events)-1].SheetNames; len(names) != 2 {
		t.Errorf("SheetNames = %v", names)
	}
}

func TestRunner_Cancel(t *testing.T) {
	r := NewRunner(RunnerConfig{SyncThreshold: 1}, nil)
	payload := []byte(strings.Repeat("alpha,beta,gamma,delta\n", 200000))

	j, err := r.Start(context.Background(), StartMessage{FileName: "huge.csv", Kind: KindDelimited, Payload: payload})
	if err != nil {
		t.Fatal(err)
	}
	j.Cancel()

	for _, e := range collect(t, j) {
		if e.Terminal() {
			t.Errorf("cancelled job delivered terminal event %+v", e)
		}
	}
	<-j.Done()
	if j.State() != JobFailed {
		t.Errorf("State() = %s, want failed", j.State())
	}
	if _, err := j.Result(); !errors.Is(err, ErrJobCancelled) {
		t.Errorf("Result() error = %v, want ErrJobCancelled", err)
	}
}

func TestRunner_Busy(t *testing.T) {
	r := NewRunner(RunnerConfig{SyncThreshold: 1, MaxConcurrent: 1, MaxWait: 20 * time.Millisecond}, nil)
	if !r.Limiter().TryAcquire() {
		t.Fatal("TryAcquire failed on idle limiter")
	}
	defer r.Limiter().Release()

	_, err := r.Start(context.Background(), StartMessage{FileName: "a.csv", Payload: []byte("a,b\n1,2\n")})
	if !errors.Is(err, ErrTooManyJobs) {
		t.Errorf("Start() error = %v, want ErrTooManyJobs", err)
	}
}

func TestRunner_RunWithoutEmit(t *testing.T) {
	r := NewRunner(RunnerConfig{}, nil)
	term := r.Run(context.Background(), StartMessage{FileName: "a.csv", Payload: []byte("x\n1\n")}, nil)
	if term.Kind != EventComplete || len(term.Sheets) != 1 {
		t.Errorf("Run() = %+v, want complete with one sheet", term)
	}
}

func TestJob_WaitHonorsContext(t *testing.T) {
	j := &Job{done: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := j.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() error = %v, want context.Canceled", err)
	}
}

func TestRunner_SyncStopsWithCaller(t *testing.T) {
	r := NewRunner(RunnerConfig{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	j, err := r.Start(ctx, StartMessage{FileName: "a.csv", Kind: KindDelimited, Payload: []byte("a,b\n1,2\n")})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !j.Sync {
		t.Fatal("small payload should parse synchronously")
	}
	if j.State() != JobFailed {
		t.Errorf("State() = %s, want failed", j.State())
	}
	if _, err := j.Result(); !errors.Is(err, context.Canceled) {
		t.Errorf("Result() error = %v, want context.Canceled", err)
	}
}

func TestRunner_AsyncOutlivesCaller(t *testing.T) {
	r := NewRunner(RunnerConfig{SyncThreshold: 1}, nil)
	ctx, cancel := context.WithCancel(context.Background())

	j, err := r.Start(ctx, StartMessage{FileName: "a.csv", Kind: KindDelimited, Payload: []byte("a,b\n1,2\n")})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	cancel()

	wait, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if _, err := j.Wait(wait); err != nil {
		t.Errorf("Wait() error = %v, want the job to finish", err)
	}
}
