package storage

import (
	_ "embed"
)

const (
	insertSessionSQL = `
INSERT INTO sessions (
                      start_time,
                      device_product,
                      device_serial,
                      probe_product,
                      probe_serial,
                      standard_id,
                      frequency_mhz,
                      device_info,
                      probe_info)
VALUES (CURRENT_TIMESTAMP, ?, ?, ?, ?, ?, ?, ?, ?)`

	selectSessionSQL = `
SELECT
    id,
    start_time,
    device_product,
    device_serial,
    probe_product,
    probe_serial,
    standard_id,
    frequency_mhz,
    device_info,
    probe_info
FROM sessions
WHERE
    id = ?`

	selectSessionsSQL = `
SELECT
    id,
    start_time,
    device_product,
    device_serial,
    probe_product,
    probe_serial,
    standard_id,
    frequency_mhz,
    device_info,
    probe_info
FROM sessions
ORDER BY start_time`

	insertReadingSQL = `
INSERT INTO readings (session_id,
                      timestamp,
                      e_percent,
                      h_percent,
                      e_field,
                      h_field,
                      e_ok,
                      h_ok,
                      battery)
VALUES `

	selectReadingsSQL = `
SELECT
    id,
    session_id,
    timestamp,
    e_percent,
    h_percent,
    e_field,
    h_field,
    e_ok,
    h_ok,
    battery
FROM readings
WHERE
    session_id = ?`

	selectReadingStatsSQL = `
SELECT COUNT(*),
       COALESCE(MAX(e_percent), 0),
       COALESCE(MAX(h_percent), 0),
       MIN(timestamp),
       MAX(timestamp)
FROM readings
WHERE session_id = ?`

	initIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_readings_session_time ON readings (session_id, timestamp)`
)

//go:embed schema.sql
var initSchemaSQL string
