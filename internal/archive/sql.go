package archive

import (
	_ "embed"
)

//go:embed schema.sql
var schemaSQL string

const (
	insertSessionSQL = `
INSERT INTO sessions (
                      start_time,
                      backend_url)
VALUES (CURRENT_TIMESTAMP, ?)`

	insertTransmissionSQL = `
INSERT INTO transmissions (session_id,
                           timestamp,
                           frequency,
                           signal_strength,
                           duration,
                           description,
                           modulation)
VALUES (?, ?, ?, ?, ?, ?, ?)`

	selectSessionsSQL = `
SELECT
    id,
    start_time,
    backend_url
FROM sessions`

	selectTransmissionsSQL = `
SELECT
    id,
    session_id,
    timestamp,
    frequency,
    signal_strength,
    duration,
    description,
    modulation
FROM transmissions
WHERE
    session_id = ?
ORDER BY timestamp`
)
