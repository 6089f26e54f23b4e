// Copyright 2025 Google LLC
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

// Package metrics exposes VFFS's capacity accounting as Prometheus gauges,
// the same client library the teacher's own metrics stack is built on. Only
// the counters that correspond to state actually kept by the inode store
// (total_size, inode count, and the two fixed limits) are exported --
// nothing here duplicates request latency or throughput instrumentation the
// filesystem's spec doesn't define.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Recorder owns the gauges VFFS's handlers update after every mutation
// that touches capacity accounting.
type Recorder struct {
	totalSize  prometheus.Gauge
	inodeCount prometheus.Gauge
	maxMemory  prometheus.Gauge
	maxFile    prometheus.Gauge
}

// NewRecorder constructs and registers a Recorder against reg. Passing
// prometheus.NewRegistry() keeps VFFS's metrics out of the global default
// registry, which matters for tests that construct more than one
// filesystem in the same process.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		totalSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vffs",
			Name:      "total_size_bytes",
			Help:      "Sum of inode.size across every inode currently in the store.",
		}),
		inodeCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vffs",
			Name:      "inode_count",
			Help:      "Number of inodes currently in the store.",
		}),
		maxMemory: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vffs",
			Name:      "max_memory_bytes",
			Help:      "Configured total_size ceiling.",
		}),
		maxFile: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vffs",
			Name:      "max_file_size_bytes",
			Help:      "Configured per-file size ceiling.",
		}),
	}
	reg.MustRegister(r.totalSize, r.inodeCount, r.maxMemory, r.maxFile)
	return r
}

// SetLimits records the two fixed, start-of-day capacity limits. Called
// once, at server construction.
func (r *Recorder) SetLimits(maxMemory, maxFileSize uint64) {
	r.maxMemory.Set(float64(maxMemory))
	r.maxFile.Set(float64(maxFileSize))
}

// SetTotalSize records the store's current total_size.
func (r *Recorder) SetTotalSize(n uint64) {
	r.totalSize.Set(float64(n))
}

// SetInodeCount records the store's current inode count.
func (r *Recorder) SetInodeCount(n int) {
	r.inodeCount.Set(float64(n))
}
