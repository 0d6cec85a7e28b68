// Copyright 2021 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

package kv

import (
	"encoding/binary"
	"fmt"

	"github.com/erigontech/ligerdb/vs"
)

// Key layout. All multi-byte integers are big-endian so lexicographic
// byte ordering matches numeric ordering, letting a single ordered Scan
// serve both equality and range lookups.

const (
	// RecordKeyPrefix: /ns/{ns}/db/{db}/tb/{table}/id/{id}
	// value: codec-encoded document (value.Object)
	RecordKeyPrefix = "/ns/"

	// ChangeFeedKeyPrefix: /ns/{ns}/db/{db}/cf/{table}/{versionstamp}
	// value: codec-encoded object holding the table's mutations for one
	// commit ({"mutations": [...]})
	ChangeFeedKeyPrefix = "/ns/"

	// IndexForwardPrefix: /ix/{ns}/{db}/{table}/{index}/id/{encodedRecordKey}
	// value: 8-byte big-endian doc id (doc-id allocator forward entry,
	// key -> doc_id)
	IndexForwardPrefix = "/ix/"

	// IndexInverseKeyPrefix: /ix/{ns}/{db}/{table}/{index}/ii/{docID}
	// value: the trie/record key this doc id resolves to (doc-id
	// allocator inverse entry, doc_id -> key)
	IndexInverseKeyPrefix = "/ix/"

	// BTreeDocIdsRootKeyPrefix: /ix/{ns}/{db}/{table}/{index}/bd/root
	// value: 8-byte big-endian next_doc_id followed by the serialized
	// roaring64 free list (see docid.BTree.Finish)
	BTreeDocIdsRootKeyPrefix = "/ix/"

	// BTreeDocIdsInverseKeyPrefix: /ix/{ns}/{db}/{table}/{index}/bi/{docID}
	// value: document key the id resolves to (B-tree allocator reverse entry)
	BTreeDocIdsInverseKeyPrefix = "/ix/"
)

// RecordKey builds a record key: /ns/{ns}/db/{db}/tb/{table}/id/{id}.
func RecordKey(ns, db, table, id string) []byte {
	return []byte(fmt.Sprintf("/ns/%s/db/%s/tb/%s/id/%s", ns, db, table, id))
}

// RecordKeyPrefixFor builds the scan prefix for every record in a table.
func RecordKeyPrefixFor(ns, db, table string) []byte {
	return []byte(fmt.Sprintf("/ns/%s/db/%s/tb/%s/id/", ns, db, table))
}

// ChangeFeedKey builds a change-feed entry key:
// /ns/{ns}/db/{db}/cf/{table}/{versionstamp}, so a forward Scan over the
// table's cf/ prefix visits entries in commit order.
func ChangeFeedKey(ns, db, table string, v vs.Versionstamp) []byte {
	prefix := fmt.Sprintf("/ns/%s/db/%s/cf/%s/", ns, db, table)
	return append([]byte(prefix), v.Bytes()...)
}

// ChangeFeedKeyPrefixFor builds the scan prefix for a table's whole
// change feed.
func ChangeFeedKeyPrefixFor(ns, db, table string) []byte {
	return []byte(fmt.Sprintf("/ns/%s/db/%s/cf/%s/", ns, db, table))
}

// IndexForwardKey builds a doc-id allocator forward entry key (key ->
// doc_id): /ix/{ns}/{db}/{table}/{index}/id/{trieKey}. The value stored
// at this key is the 8-byte big-endian doc id.
func IndexForwardKey(ns, db, table, index string, trieKey []byte) []byte {
	prefix := fmt.Sprintf("/ix/%s/%s/%s/%s/id/", ns, db, table, index)
	return append([]byte(prefix), trieKey...)
}

// IndexInverseKey builds a doc-id allocator inverse entry key (doc_id ->
// key): /ix/{ns}/{db}/{table}/{index}/ii/{docID}. The value stored at
// this key is the trie/record key the doc id resolves to.
func IndexInverseKey(ns, db, table, index string, docID uint64) []byte {
	prefix := fmt.Sprintf("/ix/%s/%s/%s/%s/ii/", ns, db, table, index)
	return append([]byte(prefix), encodeBE64(docID)...)
}

// BTreeDocIdsRootKey builds the single root-state key for a B-tree doc-id
// allocator: /ix/{ns}/{db}/{table}/{index}/bd/root.
func BTreeDocIdsRootKey(ns, db, table, index string) []byte {
	return []byte(fmt.Sprintf("/ix/%s/%s/%s/%s/bd/root", ns, db, table, index))
}

// BTreeDocIdsInverseKey builds a B-tree allocator reverse entry key:
// /ix/{ns}/{db}/{table}/{index}/bi/{docID}.
func BTreeDocIdsInverseKey(ns, db, table, index string, docID uint64) []byte {
	prefix := fmt.Sprintf("/ix/%s/%s/%s/%s/bi/", ns, db, table, index)
	return append([]byte(prefix), encodeBE64(docID)...)
}

func encodeBE64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
