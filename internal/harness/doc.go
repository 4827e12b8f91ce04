// Package harness drives declarative multi-actor scenarios against the
// ticket service and records what each response shows.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: approval-cycle
//	description: "Approval moves PENDING to APPROVED"
//	vars:
//	  category: HARDWARE
//	steps:
//	  - name: create ticket
//	    actor: EMPLOYEE
//	    fallback_actor: ADMIN
//	    method: POST
//	    path: /api/tickets
//	    body: { title: "t ${run_id}", category: "${category}" }
//	    capture: { ticketId: id }
//	    checks:
//	      - field: managerApprovalStatus
//	        equals: PENDING
//	  - name: approve
//	    actor: MANAGER
//	    method: PATCH
//	    path: /api/tickets/${ticketId}/approval
//	    body: { managerApprovalStatus: APPROVED }
//	  - name: notification
//	    actor: ADMIN
//	    method: GET
//	    path: /api/notifications
//	    query: { ticketId: "${ticketId}" }
//	    wait: { timeout: 5s, interval: 200ms }
//	    checks:
//	      - field: "[type=APPROVAL].value"
//	        equals: APPROVED
//
// Field paths are dotted keys with integer indexes and [key=value] array
// filters. ${name} expands variables from vars, --var overrides,
// captures and the built-ins run_id and base_url; a string that is only
// a reference keeps the variable's type.
//
// # Step Outcomes
//
// A transport failure aborts the scenario and marks the result Fatal. An
// HTTP error passes when the step expects it (expect_error, or a listed
// expect_status), jumps to on_failure on a best_effort step, and
// otherwise fails and aborts. A missing capture aborts, since later steps
// depend on it. Check mismatches are recorded and never abort.
package harness
