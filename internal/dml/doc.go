// Package dml executes INSERT, UPDATE and DELETE as single-entity writes.
//
// UPDATE and DELETE address exactly one entity through WHERE id = <value>;
// the statement reader rejects every other shape before it gets here.
// UPDATE is read-modify-write: the stored entity is fetched, the assigned
// properties are replaced and the whole entity is written back.
package dml
