// Package worker implements the stateless map worker. Each request answers
// one user query from one community's context, scores the answer in [0, 10]
// and merges it into the rendezvous document for the query. Workers also
// serve asynchronous community report generation. Requests arrive over HTTP
// or as bus subscriptions; replicas are interchangeable.
package worker
