// Package translator watches Home Assistant update entities and replaces
// their release summaries with AI-translated text.
//
// The pipeline has four stages:
//
//   - Watcher polls the update domain, detects newly reported versions and
//     drives the stages below. A persisted ledger guarantees each
//     (entity, version) pair is translated at most once.
//   - Resolver finds the release-note text: entity attributes first, then a
//     GitHub release body when the entity only carries a release URL, then a
//     rule-configured notes URL with a JSON/regex/HTML extractor. Fetched
//     bodies are cached on disk with a TTL.
//   - Agent sends the configured prompt plus the notes to a Home Assistant
//     conversation agent and returns the translated reply.
//   - Writer merges the translation into the entity's release_summary
//     attribute, leaving state and all other attributes untouched.
//
// Failures never corrupt entity state: the original summary stays in place
// and the failure is recorded in the ledger.
package translator
