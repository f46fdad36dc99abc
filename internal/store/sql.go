package store

import (
	_ "embed"
)

const (
	insertSessionSQL = `
INSERT INTO sessions (imported_at,
                      log_path,
                      survey,
                      vessel,
                      metadata,
                      dropped)
VALUES (CURRENT_TIMESTAMP, ?, ?, ?, ?, ?)`

	selectSessionsSQL = `
SELECT 
    id, 
    log_path, 
    survey, 
    vessel, 
    metadata, 
    dropped 
FROM sessions
ORDER BY id`

	insertRecordSQL = `
INSERT INTO records (session_id, seq, time_of_day, kind, fields)
VALUES (?, ?, ?, ?, ?)`

	insertSoundingSQL = `
INSERT INTO soundings (session_id, seq, time_of_day, depth_m, confidence, sound_speed)
VALUES (?, ?, ?, ?, ?, ?)`

	insertGGASQL = `
INSERT INTO gga_fixes (session_id, seq, time_of_day, latitude, longitude, ortho_height, geoid_sep, quality)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	selectSoundingsSQL = `
SELECT 
    seq, 
    time_of_day, 
    depth_m, 
    confidence, 
    sound_speed 
FROM soundings 
WHERE 
    session_id = ? 
ORDER BY seq`

	countRecordsSQL = `
SELECT kind, COUNT(*) FROM records WHERE session_id = ? GROUP BY kind`

	initIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_records_session ON records (session_id, seq);
CREATE INDEX IF NOT EXISTS idx_soundings_session ON soundings (session_id, seq);
CREATE INDEX IF NOT EXISTS idx_gga_session ON gga_fixes (session_id, seq);`
)

//go:embed schema.sql
var initSchemaSQL string
