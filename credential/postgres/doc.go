// Package postgres implements the credential.Store contract on PostgreSQL
// via pgx. State transitions are single-row conditional updates
// (WHERE status = 'valid'), and Consume wraps the USED transition and the
// replacement insert in one transaction so a partial rotation never commits.
package postgres
