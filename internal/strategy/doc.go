// Package strategy implements the context retrieval strategies.
//
// Every strategy takes a query, a project scope and a budget (maxContexts)
// and returns at most maxContexts items sorted by score descending. Ties keep
// the order in which items were produced. A budget of zero or less yields an
// empty list without touching the retriever.
//
// Strategies:
//
//   - Semantic: plain similarity retrieval
//   - Structural: over-fetches and boosts candidates sharing class, function
//     and variable names with the query
//   - Dependency: Structural plus one extra retrieval for imported modules
//   - Balanced: splits the budget between Semantic, Structural and Dependency
//   - Conversation: ranks recent generation prompts of the active session,
//     topped up with down-weighted Semantic results
//
// Strategies never return errors. Retriever and session failures are logged
// through the context logger and degrade to fewer (or zero) items.
package strategy
