package mcpserver

// TopicFormatContract describes how topic files in the content repository are
// laid out and how the service turns them into points.
const TopicFormatContract = `# Cheatsheet Topic Format

Each course is a directory of Kotlin source files under the repository content root
(for example ` + "`" + `app/src/main/java/ir/hrka/kotlin/courses/coroutine` + "`" + `).

## File names

` + "```" + `
<id>_<CamelCaseName>[(visualized)].kt
` + "```" + `

- ` + "`" + `id` + "`" + ` is a non-negative integer and is the topic's identity. Topics are listed in id order.
- The title is the name with the id prefix and extension removed and CamelCase split
  into words: ` + "`" + `1_SequentialProgramming.kt` + "`" + ` becomes "Sequential Programming".
- A ` + "`" + `(visualized)` + "`" + ` marker flags topics that ship an interactive visualisation.
- Files that do not start with ` + "`" + `<digits>_` + "`" + ` and directories are ignored.

## Points

Points live in KDoc blocks (` + "`" + `/** ... */` + "`" + `). Code outside them is ignored.

` + "```" + `kotlin
/**
 * * Heading of the first point:
 *    * A sub point, indented under the heading.
 *    * Another sub point.
 * ` + "```" + `
 *    fun main() { }
 * ` + "```" + `
 * * Heading of the second point.
 */
` + "```" + `

1. A line starting with ` + "`" + `* ` + "`" + ` right after the comment star opens a new point. Its text up to
   the first sub point or snippet is the heading; continuation lines are joined with spaces.
2. An indented ` + "`" + `* ` + "`" + ` line is a sub point of the current point.
3. Triple-backtick fences inside the block are code snippets attached to the current point.
4. Points without a heading are dropped. Points are numbered from 1 across all blocks.

## Versions

The repository's ` + "`" + `app/build.gradle.kts` + "`" + ` carries ` + "`" + `versionName` + "`" + ` and ` + "`" + `versionNameSuffix` + "`" + `.

- A change in major or minor version means the topic list changed; the list is refetched.
- A patch-only change means some topics' content changed. The suffix names them,
  e.g. ` + "`" + `-ids:[4,7]` + "`" + `, and those topics are flagged as updated.
- Reading a topic's points clears its update flag.
`
