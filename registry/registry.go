// Copyright 2022 Sogang University
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package registry implements the service that owns the samples of an
// analysis run.  Samples are registered from configuration records, their
// event counts populated once the input files are known, and their event
// ranges split into jobs that are scheduled across the workers.
package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/9rum/meanalysis/internal/chain"
	"github.com/9rum/meanalysis/internal/config"
	"github.com/9rum/meanalysis/internal/sample"
	"github.com/9rum/meanalysis/scheduler"
	"github.com/golang/glog"
	"github.com/golang/protobuf/ptypes/empty"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Keys of the request and descriptor records besides the sample keys.
const (
	KeyTotalEvents  = "totalEvents"
	KeyFirstEvent   = "firstEvent"
	KeyLastEvent    = "lastEvent"
	KeyWorldSize    = "worldSize"
	KeyEventsPerJob = "eventsPerJob"
	KeySchedule     = "schedule"
	KeyRank         = "rank"
	KeyCoefficient  = "coefficient"
	KeyIntercept    = "intercept"
	KeyFirst        = "first"
	KeyLast         = "last"
)

// scheduleTypes maps the names accepted in schedule requests to scheduler types.
var scheduleTypes = map[string]int32{
	"STATIC":  scheduler.STATIC,
	"DYNAMIC": scheduler.DYNAMIC,
}

// registryServer implements the server API for Registry service.
type registryServer struct {
	UnimplementedRegistryServer
	mu        sync.Mutex
	samples   map[string]*sample.Sample
	order     []string
	opener    chain.Opener
	metrics   *metrics
	scheduler scheduler.Scheduler
	worldSize int
	typ       int32
	done      chan<- os.Signal
	once      sync.Once
}

// NewRegistryServer creates a new registry server.  The input files of the
// samples are opened with the given opener and the metrics are registered
// with reg.  Finalize notifies done.
func NewRegistryServer(done chan<- os.Signal, opener chain.Opener, reg prometheus.Registerer) RegistryServer {
	return &registryServer{
		samples: make(map[string]*sample.Sample),
		opener:  opener,
		metrics: newMetrics(reg),
		done:    done,
	}
}

// Register creates a sample from the given configuration record.
func (r *registryServer) Register(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	s, err := sample.New(config.Record{Struct: in}, sample.WithOpener(r.opener))
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	glog.Infof("Register called with nickname: %s type: %s process: %s", s.NickName(), s.Type(), s.Process())

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, found := r.samples[s.NickName()]; found {
		return nil, status.Errorf(codes.AlreadyExists, "sample %s already registered", s.NickName())
	}
	if in.GetFields()[KeyTotalEvents] != nil {
		total, err := config.Record{Struct: in}.Int(KeyTotalEvents)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		s.SetTotalEvents(total)
	}
	if s.Skip() {
		glog.Warningf("sample %s is marked to be skipped", s.NickName())
		r.metrics.skipped.Inc()
	}

	r.samples[s.NickName()] = s
	r.order = append(r.order, s.NickName())
	r.metrics.samples.Inc()

	return describe(s)
}

// lookup returns the sample with the given nickname.  The caller must hold r.mu.
func (r *registryServer) lookup(nickName string) (*sample.Sample, error) {
	s, found := r.samples[nickName]
	if !found {
		return nil, status.Errorf(codes.NotFound, "sample %s not registered", nickName)
	}
	return s, nil
}

// Describe returns the descriptor of the sample with the given nickname.
func (r *registryServer) Describe(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.lookup(in.GetValue())
	if err != nil {
		return nil, err
	}
	return describe(s)
}

// SetTotalEvents sets the total number of events of a sample.
func (r *registryServer) SetTotalEvents(ctx context.Context, in *structpb.Struct) (*empty.Empty, error) {
	rec := config.Record{Struct: in}
	nickName, err := rec.String(sample.KeyNickName)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	total, err := rec.Int(KeyTotalEvents)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	glog.Infof("SetTotalEvents called with nickname: %s total events: %d", nickName, total)

	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.lookup(nickName)
	if err != nil {
		return nil, err
	}
	s.SetTotalEvents(total)

	return new(empty.Empty), nil
}

// Populate counts the events of a sample from its input files.
func (r *registryServer) Populate(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	glog.Infof("Populate called with nickname: %s", in.GetValue())

	r.mu.Lock()
	s, err := r.lookup(in.GetValue())
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}

	// the input files are scanned without holding the lock
	start := time.Now()
	n, err := s.Count(ctx)
	if err != nil {
		if errors.Is(err, sample.ErrStageDisabled) {
			return nil, status.Errorf(codes.FailedPrecondition, "sample %s: %v", s.NickName(), err)
		}
		return nil, status.Errorf(codes.Internal, "sample %s: %v", s.NickName(), err)
	}
	r.metrics.populate.Observe(time.Since(start).Seconds())

	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.samples[s.NickName()]; !ok || cur != s {
		return nil, status.Errorf(codes.Aborted, "sample %s was finalized while populating", s.NickName())
	}
	s.SetTotalEvents(n)
	glog.Infof("sample %s has %d events", s.NickName(), n)

	return describe(s)
}

// Schedule splits the event ranges of the registered samples into jobs and
// assigns them to the workers.  The response holds one list of jobs per rank.
func (r *registryServer) Schedule(ctx context.Context, in *structpb.Struct) (*structpb.ListValue, error) {
	rec := config.Record{Struct: in}
	worldSize, err := rec.Int(KeyWorldSize)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if worldSize < 1 {
		return nil, status.Errorf(codes.InvalidArgument, "invalid world size: %d", worldSize)
	}
	var eventsPerJob int64
	if rec.Has(KeyEventsPerJob) {
		if eventsPerJob, err = rec.Int(KeyEventsPerJob); err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
	}
	typ := int32(scheduler.STATIC)
	if rec.Has(KeySchedule) {
		name, err := rec.String(KeySchedule)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		var found bool
		if typ, found = scheduleTypes[name]; !found {
			return nil, status.Errorf(codes.InvalidArgument, "invalid schedule: %s", name)
		}
	}
	glog.Infof("Schedule called with world size: %d events per job: %d", worldSize, eventsPerJob)

	r.mu.Lock()
	defer r.mu.Unlock()

	// keep the worker profiles as long as the cluster does not change
	if r.scheduler == nil || r.worldSize != int(worldSize) || r.typ != typ {
		r.scheduler = scheduler.New(int(worldSize), typ)
		r.worldSize, r.typ = int(worldSize), typ
	}

	var jobs []scheduler.Job
	for _, nickName := range r.order {
		jobs = append(jobs, scheduler.Split(r.samples[nickName], eventsPerJob)...)
	}

	out := &structpb.ListValue{Values: make([]*structpb.Value, 0, worldSize)}
	for _, assigned := range r.scheduler.Schedule(jobs) {
		list := &structpb.ListValue{Values: make([]*structpb.Value, 0, len(assigned))}
		for _, job := range assigned {
			list.Values = append(list.Values, structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
				sample.KeyNickName: structpb.NewStringValue(job.NickName),
				KeyFirst:           structpb.NewNumberValue(float64(job.First)),
				KeyLast:            structpb.NewNumberValue(float64(job.Last)),
			}}))
			r.metrics.events.Add(float64(job.Len()))
		}
		r.metrics.jobs.Add(float64(len(assigned)))
		out.Values = append(out.Values, structpb.NewListValue(list))
	}

	return out, nil
}

// Feedback updates the profile of a worker for dynamic scheduling.
func (r *registryServer) Feedback(ctx context.Context, in *structpb.Struct) (*empty.Empty, error) {
	rec := config.Record{Struct: in}
	rank, err := rec.Int(KeyRank)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	coefficient, err := rec.Float(KeyCoefficient)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	intercept, err := rec.Float(KeyIntercept)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	glog.Infof("Feedback called from rank %d", rank)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.scheduler == nil {
		return nil, status.Error(codes.FailedPrecondition, "no schedule has been made")
	}
	if rank < 0 || int64(r.worldSize) <= rank {
		return nil, status.Errorf(codes.InvalidArgument, "invalid rank: %d", rank)
	}
	r.scheduler.OnBatchEnd(int(rank), coefficient, intercept)

	return new(empty.Empty), nil
}

// Finalize releases every sample and notifies the main goroutine that the
// registry has ended.
func (r *registryServer) Finalize(ctx context.Context, in *empty.Empty) (*empty.Empty, error) {
	glog.Info("Finalize called")
	defer glog.Flush()

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, nickName := range r.order {
		if err := r.samples[nickName].Close(); err != nil {
			glog.Errorf("failed to close sample %s: %v", nickName, err)
		}
	}
	r.samples = make(map[string]*sample.Sample)
	r.order = nil
	r.scheduler = nil
	r.metrics.samples.Set(0)
	r.metrics.skipped.Set(0)

	r.once.Do(func() {
		if r.done == nil {
			return
		}
		select {
		case r.done <- syscall.SIGTERM:
		default:
		}
	})

	return new(empty.Empty), nil
}

// describe returns the descriptor of the given sample.  The descriptor holds
// the configuration keys of the sample, so it can be registered again.
func describe(s *sample.Sample) (*structpb.Struct, error) {
	first, last := s.Range()
	out, err := structpb.NewStruct(map[string]interface{}{
		sample.KeyNickName:          s.NickName(),
		sample.KeyFileNamesS1:       list(s.FileNames(sample.Stage1)),
		sample.KeyFileNamesS2:       list(s.FileNames(sample.Stage2)),
		sample.KeyFractionToProcess: s.FractionToProcess(),
		sample.KeyType:              s.Type().String(),
		sample.KeyProcess:           s.Process().String(),
		sample.KeySkip:              s.Skip(),
		sample.KeyStep1Enabled:      s.Enabled(sample.Stage1),
		sample.KeyStep2Enabled:      s.Enabled(sample.Stage2),
		KeyTotalEvents:              s.TotalEvents(),
		KeyFirstEvent:               first,
		KeyLastEvent:                last,
	})
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("sample %s: %v", s.NickName(), err))
	}
	return out, nil
}

// list converts the given strings for use in a structpb value.
func list(strs []string) []interface{} {
	out := make([]interface{}, 0, len(strs))
	for _, s := range strs {
		out = append(out, s)
	}
	return out
}
