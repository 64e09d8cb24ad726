// Package prometheus renders goAccount engine metrics in Prometheus text
// exposition format.
//
// [NewPrometheusExporter] reads an [goAccount.Engine] snapshot on every
// scrape. Counter names are goaccount_*_total; the login and refresh
// latency histograms are goaccount_login_latency_seconds and
// goaccount_refresh_latency_seconds.
//
// Each scrape also walks the Redis keyspace through
// [goAccount.Engine.StoreStats] for goaccount_users_with_sessions and
// goaccount_reset_codes_outstanding. goaccount_store_stats_up reports
// whether that walk succeeded.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry. Callers mount the Handler.
//   - Mutate engine state.
package prometheus
