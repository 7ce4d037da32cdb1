// Package measure implements the representation metric engine: cost
// matrices between candidates and voters, greedy best-subset assignment
// costs, the group inefficiency score, and randomized bloc stress tests.
//
// Every function is pure over its inputs. Randomized operations take a
// math/rand/v2 Source from the caller and never touch global state, so
// independent evaluations may run concurrently as long as each uses its
// own source.
package measure
