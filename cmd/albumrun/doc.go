// Command albumrun classifies a music library into album folders and runs a
// per-album command (beet import by default) over them with bounded
// parallelism, retries and a per-folder log, then reports which folders
// succeeded and which failed.
package main
