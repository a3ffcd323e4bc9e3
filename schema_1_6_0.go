package enginelib

// Schema 1.6.0 - the layout written by firmware 1.0.0.

const musicSchema1_6_0 = `
CREATE TABLE IF NOT EXISTS Information (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  uuid TEXT,
  schemaVersionMajor INTEGER,
  schemaVersionMinor INTEGER,
  schemaVersionPatch INTEGER
);

CREATE TABLE IF NOT EXISTS Track (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  playOrder INTEGER,
  length INTEGER,
  lengthCalculated INTEGER,
  bpm INTEGER,
  year INTEGER,
  path TEXT,
  filename TEXT,
  bitrate INTEGER,
  bpmAnalyzed REAL,
  trackType INTEGER,
  isExternalTrack NUMERIC,
  uuidOfExternalDatabase TEXT,
  idTrackInExternalDatabase INTEGER,
  idAlbumArt INTEGER
);

CREATE UNIQUE INDEX IF NOT EXISTS index_Track_path ON Track(path);
CREATE INDEX IF NOT EXISTS index_Track_filename ON Track(filename);

-- Free-text metadata, one row per (track, field type)
CREATE TABLE IF NOT EXISTS MetaData (
  id INTEGER,
  type INTEGER,
  text TEXT,
  PRIMARY KEY (id, type)
);

-- Integer metadata, one row per (track, field type)
CREATE TABLE IF NOT EXISTS MetaDataInteger (
  id INTEGER,
  type INTEGER,
  value INTEGER,
  PRIMARY KEY (id, type)
);

CREATE TABLE IF NOT EXISTS Crate (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  title TEXT,
  path TEXT
);

-- Every crate has exactly one parent row; root crates reference themselves
CREATE TABLE IF NOT EXISTS CrateParentList (
  crateOriginId INTEGER,
  crateParentId INTEGER
);

CREATE UNIQUE INDEX IF NOT EXISTS index_CrateParentList_origin ON CrateParentList(crateOriginId);
CREATE INDEX IF NOT EXISTS index_CrateParentList_parent ON CrateParentList(crateParentId);

CREATE TABLE IF NOT EXISTS CrateTrackList (
  crateId INTEGER,
  trackId INTEGER
);

CREATE UNIQUE INDEX IF NOT EXISTS index_CrateTrackList_membership ON CrateTrackList(crateId, trackId);
CREATE INDEX IF NOT EXISTS index_CrateTrackList_track ON CrateTrackList(trackId);

CREATE TABLE IF NOT EXISTS AlbumArt (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  hash TEXT,
  albumArt BLOB
);
`

const perfSchema1_6_0 = `
CREATE TABLE IF NOT EXISTS Information (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  uuid TEXT,
  schemaVersionMajor INTEGER,
  schemaVersionMinor INTEGER,
  schemaVersionPatch INTEGER
);

-- Analysis results, keyed 1:1 by track id in the music store
CREATE TABLE IF NOT EXISTS PerformanceData (
  id INTEGER PRIMARY KEY,
  isAnalyzed NUMERIC,
  isRendered NUMERIC,
  trackData BLOB,
  highResolutionWaveFormData BLOB,
  overviewWaveFormData BLOB,
  beatData BLOB,
  quickCues BLOB,
  loops BLOB
);
`

var schema1_6_0 = schemaDef{
	version:  Version1_6_0,
	musicDDL: musicSchema1_6_0,
	perfDDL:  perfSchema1_6_0,

	musicTables: []tableSpec{
		{"Information", []columnSpec{
			col("id", "INTEGER"),
			col("uuid", "TEXT"),
			col("schemaVersionMajor", "INTEGER"),
			col("schemaVersionMinor", "INTEGER"),
			col("schemaVersionPatch", "INTEGER"),
		}},
		{"Track", []columnSpec{
			col("id", "INTEGER"),
			col("playOrder", "INTEGER"),
			col("length", "INTEGER"),
			col("lengthCalculated", "INTEGER"),
			col("bpm", "INTEGER"),
			col("year", "INTEGER"),
			col("path", "TEXT"),
			col("filename", "TEXT"),
			col("bitrate", "INTEGER"),
			col("bpmAnalyzed", "REAL"),
			col("trackType", "INTEGER"),
			col("isExternalTrack", "NUMERIC"),
			col("uuidOfExternalDatabase", "TEXT"),
			col("idTrackInExternalDatabase", "INTEGER"),
			col("idAlbumArt", "INTEGER"),
		}},
		{"MetaData", []columnSpec{
			col("id", "INTEGER"),
			col("type", "INTEGER"),
			col("text", "TEXT"),
		}},
		{"MetaDataInteger", []columnSpec{
			col("id", "INTEGER"),
			col("type", "INTEGER"),
			col("value", "INTEGER"),
		}},
		{"Crate", []columnSpec{
			col("id", "INTEGER"),
			col("title", "TEXT"),
			col("path", "TEXT"),
		}},
		{"CrateParentList", []columnSpec{
			col("crateOriginId", "INTEGER"),
			col("crateParentId", "INTEGER"),
		}},
		{"CrateTrackList", []columnSpec{
			col("crateId", "INTEGER"),
			col("trackId", "INTEGER"),
		}},
		{"AlbumArt", []columnSpec{
			col("id", "INTEGER"),
			col("hash", "TEXT"),
			col("albumArt", "BLOB"),
		}},
	},

	perfTables: []tableSpec{
		{"Information", []columnSpec{
			col("id", "INTEGER"),
			col("uuid", "TEXT"),
			col("schemaVersionMajor", "INTEGER"),
			col("schemaVersionMinor", "INTEGER"),
			col("schemaVersionPatch", "INTEGER"),
		}},
		{"PerformanceData", []columnSpec{
			col("id", "INTEGER"),
			col("isAnalyzed", "NUMERIC"),
			col("isRendered", "NUMERIC"),
			col("trackData", "BLOB"),
			col("highResolutionWaveFormData", "BLOB"),
			col("overviewWaveFormData", "BLOB"),
			col("beatData", "BLOB"),
			col("quickCues", "BLOB"),
			col("loops", "BLOB"),
		}},
	},
}
