// Package bench drives the benchmark suite against a running tool server
// session: sequential store, scalability, query, retrieval, screening,
// stress, analytics and cleanup phases, each recording latencies under its
// operation label. A failed operation is logged and counted, never fatal; a
// failed phase marks the phase failed and the suite moves on.
package bench
