// Package worldpack builds a single compressed archive from a Minecraft
// world save and serves it over HTTP.
//
// An archive is produced in three phases:
//   - A Manifest is built by walking the world's root directories.
//   - The manifest is partitioned into balanced WorkChunks, one per worker.
//   - Each chunk is compressed independently and the chunk outputs are
//     concatenated into one valid archive.
//
// Two container formats are supported: zip with per-entry deflate, and tar
// framed with zstd. Both permit reassembly of independently compressed
// chunks: zstd frames concatenate freely, while zip requires the assembler
// to append a single central directory covering all chunks.
//
// The root package holds the data model, the manifest builder, and the
// partitioner. Compression lives in codec, reassembly in assemble, the
// build pipeline in archive, and the HTTP download handler in server.
package worldpack
